package otp

import (
	"bytes"
	"testing"

	"github.com/MrEthical07/kindauth/model"
)

func TestGenerateUsesInjectedSource(t *testing.T) {
	g := Generator{Digits: 6, Rand: bytes.NewReader([]byte{0, 1, 2, 13, 24, 255, 99, 250, 7})}
	code, err := g.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// 255 is rejected; the second read supplies the last digit.
	if code != "012349" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestGenerateLengthAndDigits(t *testing.T) {
	g := Generator{Digits: 8}
	for i := 0; i < 50; i++ {
		code, err := g.Generate()
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if err := g.Validate(code); err != nil {
			t.Fatalf("generated code %q failed validation", code)
		}
	}
}

func TestValidate(t *testing.T) {
	g := Generator{Digits: 6}
	for _, bad := range []string{"", "12345", "1234567", "12a456", " 23456"} {
		if err := g.Validate(bad); err != ErrMalformed {
			t.Fatalf("expected ErrMalformed for %q, got %v", bad, err)
		}
	}
	if err := g.Validate("000000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHashBindsSlot(t *testing.T) {
	a := model.ChallengeKey{AccountID: "a1", Channel: model.ChannelEmail, Purpose: model.PurposeActivation}
	b := a
	b.Purpose = model.PurposePasswordReset

	if Hash(a, "123456") == Hash(b, "123456") {
		t.Fatal("hash must differ across purposes")
	}
	if !Equal(Hash(a, "123456"), Hash(a, "123456")) {
		t.Fatal("hash must be deterministic")
	}
	if Equal(Hash(a, "123456"), Hash(a, "123457")) {
		t.Fatal("different codes compared equal")
	}
}
