package types

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"unicode/utf8"
)

// ValidationErrors maps a form field to the reason its value was rejected.
type ValidationErrors map[string]string

// Error lists the failures sorted by field name.
func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f, v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a failure for field unless one is already recorded.
func (v ValidationErrors) Add(field, msg string) {
	if _, ok := v[field]; !ok {
		v[field] = msg
	}
}

// Err returns v as an error, or nil when nothing failed.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// ValidEmail reports whether s is a bare email address such as
// "name@example.org", with no display name.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at:], ".")
}

// Length checks that s holds between minLen and maxLen characters and
// records msg against field otherwise. A non-positive maxLen means no upper
// bound.
func (v ValidationErrors) Length(field, s string, minLen, maxLen int, msg string) {
	n := utf8.RuneCountInString(s)
	if n < minLen || (maxLen > 0 && n > maxLen) {
		v.Add(field, msg)
	}
}
