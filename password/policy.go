package password

import (
	"errors"
	"strings"
)

var (
	// ErrPolicy is returned when a plaintext is outside the length bounds.
	ErrPolicy = errors.New("password policy violation")
	// ErrMalformedHash is returned for digests no hasher recognizes.
	ErrMalformedHash = errors.New("malformed password hash")
)

const (
	defaultMinBytes = 10
	// bcrypt ignores input past 72 bytes, so the shared ceiling stays there.
	defaultMaxBytes = 72
)

// Policy bounds plaintext length in bytes. Input is not normalized.
type Policy struct {
	MinBytes int
	MaxBytes int
}

func (p Policy) withDefaults() Policy {
	if p.MinBytes <= 0 {
		p.MinBytes = defaultMinBytes
	}
	if p.MaxBytes <= 0 {
		p.MaxBytes = defaultMaxBytes
	}
	return p
}

// Check validates plain against the policy.
func (p Policy) Check(plain string) error {
	p = p.withDefaults()
	if len(plain) < p.MinBytes || len(plain) > p.MaxBytes {
		return ErrPolicy
	}
	return nil
}

// Auto hashes with Argon2 and verifies either format, so bcrypt digests keep
// working until the next successful login rehashes them.
type Auto struct {
	Argon2 *Argon2
	Bcrypt *Bcrypt
}

func (a Auto) Hash(plain string) (string, error) {
	return a.Argon2.Hash(plain)
}

func (a Auto) Verify(plain, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$"+algorithmID+"$"):
		return a.Argon2.Verify(plain, digest)
	case isBcrypt(digest):
		if a.Bcrypt == nil {
			return false, ErrMalformedHash
		}
		return a.Bcrypt.Verify(plain, digest)
	default:
		return false, ErrMalformedHash
	}
}

// NeedsUpgrade reports true for bcrypt digests and for argon2 digests made
// with weaker parameters.
func (a Auto) NeedsUpgrade(digest string) (bool, error) {
	if isBcrypt(digest) {
		return true, nil
	}
	return a.Argon2.NeedsUpgrade(digest)
}
