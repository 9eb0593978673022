// Package identity resolves patient-supplied credentials to a clinic record.
package identity

import (
	"strings"
	"time"
)

// BirthDateLayout is the only accepted secondary credential format.
const BirthDateLayout = "2006-01-02"

// Patient is a clinic patient record. Read-only from the portal's perspective.
type Patient struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	NationalID string    `json:"-"`
	BirthDate  string    `json:"-"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Credentials are what the patient types into the login form.
type Credentials struct {
	NationalID string `json:"national_id"`
	BirthDate  string `json:"birth_date,omitempty"`
}

// Lookup is the normalized store query derived from Credentials.
type Lookup struct {
	NationalID string
	BirthDate  string
}

// NormalizeNationalID strips every non-digit character.
func NormalizeNationalID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// validBirthDate reports whether s is a calendar date in BirthDateLayout.
func validBirthDate(s string) bool {
	parsed, err := time.Parse(BirthDateLayout, s)
	return err == nil && parsed.Format(BirthDateLayout) == s
}
