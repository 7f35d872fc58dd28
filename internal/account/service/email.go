package service

import (
	emailverifier "github.com/AfterShip/email-verifier"

	"signup-verify/internal/account/domain"
)

// EmailChecker validates address syntax and, optionally, rejects disposable-mail
// domains. It performs no network lookups.
type EmailChecker struct {
	verifier         *emailverifier.Verifier
	rejectDisposable bool
}

// NewEmailChecker returns a checker backed by the AfterShip verifier's built-in domain lists.
func NewEmailChecker(rejectDisposable bool) *EmailChecker {
	return &EmailChecker{
		verifier:         emailverifier.NewVerifier(),
		rejectDisposable: rejectDisposable,
	}
}

// Check returns a *domain.ValidationError for an unusable address. email should already be normalized.
func (c *EmailChecker) Check(email string) error {
	syntax := c.verifier.ParseAddress(email)
	if !syntax.Valid {
		return &domain.ValidationError{Field: string(domain.FieldEmail), Message: "enter a valid email address"}
	}
	if c.rejectDisposable && c.verifier.IsDisposable(syntax.Domain) {
		return &domain.ValidationError{Field: string(domain.FieldEmail), Message: "disposable email addresses are not accepted"}
	}
	return nil
}
