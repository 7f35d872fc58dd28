package security

import (
	passwordvalidator "github.com/wagslane/go-password-validator"
)

// PasswordPolicy rejects weak passwords by estimated entropy.
// A zero MinEntropy disables the check.
type PasswordPolicy struct {
	MinEntropy float64
}

// Check returns nil when password satisfies the policy, or an error whose
// message tells the user how to strengthen it.
func (p PasswordPolicy) Check(password string) error {
	if p.MinEntropy <= 0 {
		return nil
	}
	return passwordvalidator.Validate(password, p.MinEntropy)
}

// Entropy returns the estimated entropy of password in bits.
func Entropy(password string) float64 {
	return passwordvalidator.GetEntropy(password)
}
