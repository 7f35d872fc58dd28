package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxUsernameLength = 150
	MaxEmailLength    = 254
	MaxPhoneLength    = 20
	CodeLength        = 6
)

// Account is the registered user identity. It is created inactive and becomes
// active once the emailed verification code is confirmed.
type Account struct {
	ID               string
	Username         string
	Email            string // normalized; primary login identifier
	PhoneNumber      string // optional; empty when not provided
	PasswordHash     string
	IsActive         bool
	IsStaff          bool
	IsSuperuser      bool
	VerificationCode string // 6 digits as text; kept after activation
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Field names an account attribute usable for lookups.
type Field string

const (
	FieldID          Field = "id"
	FieldUsername    Field = "username"
	FieldEmail       Field = "email"
	FieldPhoneNumber Field = "phone_number"
)

// Pending reports whether the account still awaits code verification.
func (a *Account) Pending() bool {
	return !a.IsActive
}

func (a *Account) String() string {
	return a.Email
}

// Validate validates the account for persistence. Returns a *ValidationError describing the first failure.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return &ValidationError{Field: string(FieldUsername), Message: "username is required"}
	}
	if utf8.RuneCountInString(a.Username) > MaxUsernameLength {
		return &ValidationError{Field: string(FieldUsername), Message: "username must be at most 150 characters"}
	}
	if a.Email == "" {
		return &ValidationError{Field: string(FieldEmail), Message: "email is required"}
	}
	if len(a.Email) > MaxEmailLength {
		return &ValidationError{Field: string(FieldEmail), Message: "email is too long"}
	}
	if utf8.RuneCountInString(a.PhoneNumber) > MaxPhoneLength {
		return &ValidationError{Field: string(FieldPhoneNumber), Message: "phone number must be at most 20 characters"}
	}
	if a.PasswordHash == "" {
		return &ValidationError{Field: "password", Message: "password is required"}
	}
	if a.VerificationCode != "" && !IsCode(a.VerificationCode) {
		return &ValidationError{Field: "verification_code", Message: "verification code must be 6 digits"}
	}
	if a.IsSuperuser && !a.IsStaff {
		return &ValidationError{Field: "is_staff", Message: "superuser must have is_staff=true"}
	}
	return nil
}

// IsCode reports whether s is exactly six ASCII digits.
func IsCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizeEmail canonicalizes an address for storage and lookup: surrounding
// whitespace is dropped and the whole address is lowercased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
