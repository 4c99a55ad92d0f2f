// Package otp generates and hashes numeric one-time passcodes.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"

	"github.com/MrEthical07/kindauth/model"
)

// ErrMalformed is returned for codes that are not exactly Digits decimal digits.
var ErrMalformed = errors.New("malformed otp code")

// Generator draws codes from Rand. A nil Rand reads crypto/rand.
type Generator struct {
	Digits int
	Rand   io.Reader
}

// Generate returns a zero-padded numeric code. Bytes >= 250 are rejected to
// keep every digit uniform.
func (g Generator) Generate() (string, error) {
	digits := g.Digits
	if digits <= 0 {
		digits = 6
	}
	src := g.Rand
	if src == nil {
		src = rand.Reader
	}

	out := make([]byte, 0, digits)
	buf := make([]byte, digits)
	for len(out) < digits {
		chunk := buf[:digits-len(out)]
		if _, err := io.ReadFull(src, chunk); err != nil {
			return "", err
		}
		for _, b := range chunk {
			if b < 250 {
				out = append(out, '0'+b%10)
			}
		}
	}
	return string(out), nil
}

// Validate checks the submitted code shape before any store access.
func (g Generator) Validate(code string) error {
	digits := g.Digits
	if digits <= 0 {
		digits = 6
	}
	if len(code) != digits {
		return ErrMalformed
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return ErrMalformed
		}
	}
	return nil
}

// Hash binds the code to its challenge slot so that a leaked hash cannot be
// replayed against another account or purpose.
func Hash(key model.ChallengeKey, code string) string {
	h := sha256.New()
	h.Write([]byte(key.AccountID))
	h.Write([]byte{0})
	h.Write([]byte(key.Channel))
	h.Write([]byte{0})
	h.Write([]byte(key.Purpose))
	h.Write([]byte{0})
	h.Write([]byte(code))
	return hex.EncodeToString(h.Sum(nil))
}

// Equal compares two hex digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
