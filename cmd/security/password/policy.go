package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate applies the configured password policy to a candidate.
// Lengths are measured in runes so multi-byte input is not penalized.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && isVeryWeak(password) {
		return ErrWeakPassword
	}
	return nil
}

// trivialPasswords are rejected outright under RejectVeryWeak.
var trivialPasswords = map[string]bool{
	"password":    true,
	"password123": true,
	"123456":      true,
	"123456789":   true,
	"qwerty":      true,
	"qwerty123":   true,
	"11111111":    true,
}

// isVeryWeak catches only the obviously hopeless cases: one repeated
// rune, short all-digit PINs, and a tiny list of trivial passwords.
// Full strength estimation is out of scope.
func isVeryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}

	runes := []rune(s)
	uniform := true
	digitsOnly := true
	for _, r := range runes {
		if r != runes[0] {
			uniform = false
		}
		if !unicode.IsDigit(r) {
			digitsOnly = false
		}
	}
	if uniform {
		return true
	}
	if digitsOnly && len(runes) < 12 {
		return true
	}

	return trivialPasswords[strings.ToLower(s)]
}
