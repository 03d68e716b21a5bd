package membership

import (
	"strings"

	"github.com/Veraticus/member-portal/pkg/types"
)

// ApplicationForm is a submitted membership application.
type ApplicationForm struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Profession      string `json:"profession"`
	Organization    string `json:"organization"`
	ExperienceYears *int   `json:"experience_years"`
	Motivation      string `json:"motivation"`
}

// Normalize trims surrounding whitespace from every text field.
func (f *ApplicationForm) Normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Profession = strings.TrimSpace(f.Profession)
	f.Organization = strings.TrimSpace(f.Organization)
	f.Motivation = strings.TrimSpace(f.Motivation)
}

// Validate checks a normalized form.
func (f *ApplicationForm) Validate() error {
	v := types.ValidationErrors{}

	v.Length("full_name", f.FullName, 2, 0, "Name must be at least 2 characters")
	v.Length("full_name", f.FullName, 0, 100, "Name must be at most 100 characters")
	if !types.ValidEmail(f.Email) {
		v.Add("email", "Please enter a valid email")
	}
	v.Length("email", f.Email, 0, 255, "Email must be at most 255 characters")
	if f.Phone != "" {
		v.Length("phone", f.Phone, 10, 0, "Phone number must be at least 10 digits")
		v.Length("phone", f.Phone, 0, 20, "Phone number must be at most 20 characters")
	}
	v.Length("profession", f.Profession, 2, 100, "Please enter your profession")
	v.Length("organization", f.Organization, 0, 200, "Organization must be at most 200 characters")
	if y := f.ExperienceYears; y != nil && (*y < 0 || *y > 50) {
		v.Add("experience_years", "Experience must be between 0 and 50 years")
	}
	v.Length("motivation", f.Motivation, 20, 0, "Please tell us more about your motivation (at least 20 characters)")
	v.Length("motivation", f.Motivation, 0, 1000, "Motivation must be at most 1000 characters")

	return v.Err()
}

// ContactForm is a message sent through the public contact form.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Normalize trims surrounding whitespace from every field.
func (f *ContactForm) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Message = strings.TrimSpace(f.Message)
}

// Validate checks a normalized form.
func (f *ContactForm) Validate() error {
	v := types.ValidationErrors{}

	v.Length("name", f.Name, 2, 100, "Name must be between 2 and 100 characters")
	if !types.ValidEmail(f.Email) {
		v.Add("email", "Please enter a valid email")
	}
	v.Length("email", f.Email, 0, 255, "Email must be at most 255 characters")
	if f.Phone != "" {
		v.Length("phone", f.Phone, 10, 20, "Phone number must be between 10 and 20 characters")
	}
	v.Length("message", f.Message, 10, 1000, "Message must be between 10 and 1000 characters")

	return v.Err()
}

// AdvertisementForm creates or edits an advertisement.
type AdvertisementForm struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
	Active   *bool  `json:"is_active"`
	Priority int    `json:"priority"`
}

// Validate trims the form and checks that title and content are present.
func (f *AdvertisementForm) Validate() error {
	f.Title = strings.TrimSpace(f.Title)
	f.Content = strings.TrimSpace(f.Content)
	f.ImageURL = strings.TrimSpace(f.ImageURL)

	v := types.ValidationErrors{}
	if f.Title == "" {
		v.Add("title", "Title and content are required")
	}
	if f.Content == "" {
		v.Add("content", "Title and content are required")
	}
	return v.Err()
}

// Advertisement builds the record the form describes. New advertisements
// are active unless the form says otherwise.
func (f *AdvertisementForm) Advertisement() *types.Advertisement {
	active := true
	if f.Active != nil {
		active = *f.Active
	}
	return &types.Advertisement{
		Title:    f.Title,
		Content:  f.Content,
		ImageURL: f.ImageURL,
		Active:   active,
		Priority: f.Priority,
	}
}
