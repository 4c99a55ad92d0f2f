package kindauth

import (
	"context"
	"strings"

	"github.com/MrEthical07/kindauth/model"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// ClassifyIdentifier decides whether raw names an email address or a phone
// number and returns its normalized form.
//
// Anything containing "@" is treated as email: trimmed, lower-cased, with a
// non-empty local part and domain. Everything else must be a phone number of
// 7 to 15 digits with an optional leading "+"; spaces, dashes, dots and
// parentheses are stripped. Other input fails with ErrInvalidInput.
func ClassifyIdentifier(raw string) (model.Channel, string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", "", ErrInvalidInput
	}
	if strings.Contains(s, "@") {
		email, err := NormalizeEmail(s)
		if err != nil {
			return "", "", err
		}
		return model.ChannelEmail, email, nil
	}
	phone, err := NormalizePhone(s)
	if err != nil {
		return "", "", err
	}
	return model.ChannelPhone, phone, nil
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 || strings.Count(s, "@") != 1 {
		return "", ErrInvalidInput
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return "", ErrInvalidInput
	}
	return s, nil
}

// NormalizePhone strips formatting from a phone number, keeping a leading
// "+" when present.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(s))
	digits := 0
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", ErrInvalidInput
		}
	}
	if digits < minPhoneDigits || digits > maxPhoneDigits {
		return "", ErrInvalidInput
	}
	return b.String(), nil
}

// Resolve classifies identifier and looks it up within the kind's partition.
// A malformed identifier or unknown kind returns ErrInvalidInput; a miss
// returns model.ErrNotFound without saying which field was tried.
func (e *Engine) Resolve(ctx context.Context, kind model.Kind, identifier string) (model.Account, error) {
	if e == nil || e.accounts == nil {
		return model.Account{}, ErrEngineNotReady
	}
	if !kind.Valid() {
		return model.Account{}, ErrInvalidInput
	}
	ch, normalized, err := ClassifyIdentifier(identifier)
	if err != nil {
		return model.Account{}, err
	}
	if ch == model.ChannelEmail {
		return e.accounts.FindByEmail(ctx, kind, normalized)
	}
	return e.accounts.FindByPhone(ctx, kind, normalized)
}

// MaskDestination hides most of an address for display in API responses.
func MaskDestination(ch model.Channel, dest string) string {
	switch ch {
	case model.ChannelEmail:
		at := strings.LastIndexByte(dest, '@')
		if at <= 0 {
			return "***"
		}
		return dest[:1] + "***" + dest[at:]
	case model.ChannelPhone:
		if len(dest) <= 4 {
			return "***"
		}
		return "***" + dest[len(dest)-4:]
	}
	return ""
}
