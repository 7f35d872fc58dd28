// Package verification generates and checks the 6-digit account verification codes.
package verification

import (
	"crypto/subtle"
	"math/rand/v2"
	"strconv"
)

const (
	// MinCode and MaxCode bound the generated code. The range keeps the first digit
	// non-zero, so every code renders as exactly six characters without padding.
	MinCode = 100000
	MaxCode = 999999
)

// Generator returns a new verification code.
type Generator func() string

// GenerateCode draws a uniform integer in [MinCode, MaxCode] and renders it as text.
// The math/rand/v2 global source is seeded by the runtime.
func GenerateCode() string {
	return strconv.Itoa(MinCode + rand.IntN(MaxCode-MinCode+1))
}

// Equal reports whether provided matches stored exactly, in constant time.
// An empty stored code never matches.
func Equal(provided, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(stored)) == 1
}
