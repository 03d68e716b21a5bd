// Package content holds the portal's public informational sections.
package content

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed portal.yaml
var portalYAML []byte

// ErrUnknownTier is returned when looking up a tier that isn't offered.
var ErrUnknownTier = errors.New("unknown membership tier")

// Content is the public site content.
type Content struct {
	Organization   Organization    `yaml:"organization" json:"organization"`
	Services       []Item          `yaml:"services" json:"services"`
	Goals          []Item          `yaml:"goals" json:"goals"`
	Currency       string          `yaml:"currency" json:"currency"`
	Tiers          []Tier          `yaml:"tiers" json:"tiers"`
	Benefits       []string        `yaml:"benefits" json:"benefits"`
	PaymentMethods []PaymentMethod `yaml:"payment_methods" json:"payment_methods"`
	Contact        Contact         `yaml:"contact" json:"contact"`
}

// Organization describes who runs the portal.
type Organization struct {
	Name        string   `yaml:"name" json:"name"`
	ShortName   string   `yaml:"short_name" json:"short_name"`
	Description string   `yaml:"description" json:"description"`
	Vision      string   `yaml:"vision" json:"vision"`
	Mission     []string `yaml:"mission" json:"mission"`
}

// Item is a titled paragraph such as a service or goal.
type Item struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Tier is a membership level that can be applied for.
type Tier struct {
	Name            string   `yaml:"name" json:"name"`
	AnnualFee       int      `yaml:"annual_fee" json:"annual_fee"`
	RegistrationFee int      `yaml:"registration_fee" json:"registration_fee"`
	Description     string   `yaml:"description" json:"description"`
	Requirements    []string `yaml:"requirements" json:"requirements"`
}

// PaymentMethod describes how membership fees are paid.
type PaymentMethod struct {
	Name         string `yaml:"name" json:"name"`
	Type         string `yaml:"type" json:"type"`
	Number       string `yaml:"number" json:"number"`
	AccountName  string `yaml:"account_name" json:"account_name"`
	Branch       string `yaml:"branch,omitempty" json:"branch,omitempty"`
	Instructions string `yaml:"instructions,omitempty" json:"instructions,omitempty"`
}

// Contact lists how to reach the organization.
type Contact struct {
	Phones   []string `yaml:"phones" json:"phones"`
	Emails   []string `yaml:"emails" json:"emails"`
	Address  string   `yaml:"address" json:"address"`
	Hours    []string `yaml:"hours" json:"hours"`
	WhatsApp string   `yaml:"whatsapp" json:"whatsapp"`
}

// Load parses the built-in content.
func Load() (*Content, error) {
	return Parse(portalYAML)
}

// Parse decodes and validates a content document.
func Parse(data []byte) (*Content, error) {
	var c Content
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing content: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid content: %w", err)
	}
	return &c, nil
}

func (c *Content) validate() error {
	if c.Organization.Name == "" {
		return errors.New("organization name is required")
	}
	if len(c.Tiers) == 0 {
		return errors.New("at least one membership tier is required")
	}

	seen := make(map[string]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.Name == "" {
			return errors.New("membership tier without a name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate membership tier %q", t.Name)
		}
		seen[t.Name] = true
		if t.AnnualFee < 0 || t.RegistrationFee < 0 {
			return fmt.Errorf("membership tier %q has a negative fee", t.Name)
		}
	}
	return nil
}

// Tier looks up a membership tier by name.
func (c *Content) Tier(name string) (Tier, error) {
	for _, t := range c.Tiers {
		if t.Name == name {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, name)
}
