package verification

import (
	"strconv"
	"testing"

	"signup-verify/internal/account/domain"
)

func TestGenerateCode_RangeAndFormat(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 5000; i++ {
		code := GenerateCode()
		if !domain.IsCode(code) {
			t.Fatalf("GenerateCode() = %q, want 6 ASCII digits", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			t.Fatalf("Atoi(%q): %v", code, err)
		}
		if n < MinCode || n > MaxCode {
			t.Fatalf("code %d outside [%d, %d]", n, MinCode, MaxCode)
		}
		if code[0] == '0' {
			t.Fatalf("code %q has a leading zero", code)
		}
		seen[code] = struct{}{}
	}
	// 5000 draws from 900000 values; a handful of collisions is expected, mass collisions is not.
	if len(seen) < 4900 {
		t.Errorf("only %d distinct codes in 5000 draws", len(seen))
	}
}

func TestEqual(t *testing.T) {
	testCases := []struct {
		name     string
		provided string
		stored   string
		want     bool
	}{
		{"match", "482913", "482913", true},
		{"mismatch", "000000", "482913", false},
		{"empty provided", "", "482913", false},
		{"empty stored", "", "", false},
		{"whitespace not trimmed", " 482913", "482913", false},
		{"prefix", "48291", "482913", false},
		{"longer", "4829130", "482913", false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.provided, tc.stored); got != tc.want {
				t.Errorf("Equal(%q, %q) = %v, want %v", tc.provided, tc.stored, got, tc.want)
			}
		})
	}
}
