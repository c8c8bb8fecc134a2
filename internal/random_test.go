package internal

import (
	"testing"
)

func TestNewOTPLengthAndDigits(t *testing.T) {
	for digits := MinOTPDigits; digits <= MaxOTPDigits; digits++ {
		code, err := NewOTP(digits)
		if err != nil {
			t.Fatalf("NewOTP(%d) error: %v", digits, err)
		}
		if len(code) != digits {
			t.Fatalf("expected %d digits, got %q", digits, code)
		}
		if !IsNumeric(code) {
			t.Fatalf("expected numeric code, got %q", code)
		}
	}
}

func TestNewOTPRejectsInvalidDigits(t *testing.T) {
	for _, digits := range []int{0, 3, 11} {
		if _, err := NewOTP(digits); err == nil {
			t.Fatalf("expected error for %d digits", digits)
		}
	}
}

func TestNewOTPProducesLeadingZeros(t *testing.T) {
	// 4-digit codes start with '0' one time in ten; 2000 draws make a miss vanishingly unlikely.
	for i := 0; i < 2000; i++ {
		code, err := NewOTP(MinOTPDigits)
		if err != nil {
			t.Fatalf("NewOTP error: %v", err)
		}
		if code[0] == '0' {
			return
		}
	}
	t.Fatal("expected at least one code with a leading zero")
}

func TestNewAccountIDUnique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := NewAccountID()
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate account id %s", id)
		}
		seen[id] = struct{}{}
	}
}

func TestIsNumeric(t *testing.T) {
	cases := map[string]bool{
		"":       false,
		"123456": true,
		"12a456": false,
		" 12345": false,
		"000000": true,
	}
	for in, want := range cases {
		if got := IsNumeric(in); got != want {
			t.Fatalf("IsNumeric(%q) = %v, want %v", in, got, want)
		}
	}
}
