package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func validClaims(typ TokenType, exp time.Time) Claims {
	return Claims{Kind: "learner", Type: typ, SessionID: "sid-1", RegisteredClaims: gjwt.RegisteredClaims{
		ID:        "jti-1",
		Subject:   "acct-1",
		Issuer:    "kindauth",
		Audience:  gjwt.ClaimStrings{"api"},
		ExpiresAt: gjwt.NewNumericDate(exp),
		IssuedAt:  gjwt.NewNumericDate(exp.Add(-time.Hour)),
	}}
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	m, err := NewManager(Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "kindauth",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, issued, err := m.Issue("acct-1", "staff", "sid-1", TypeAccess)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := m.Parse(access, TypeAccess)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.ID != issued.ID || claims.Subject != "acct-1" || claims.Kind != "staff" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	refresh, refreshClaims, err := m.Issue("acct-1", "staff", "sid-1", TypeRefresh)
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if refreshClaims.ID == issued.ID {
		t.Fatal("jti must be unique per token")
	}
	if claims.SessionID != "sid-1" || refreshClaims.SessionID != "sid-1" {
		t.Fatalf("expected both tokens in session sid-1, got %q and %q", claims.SessionID, refreshClaims.SessionID)
	}
	if _, err := m.Parse(refresh, TypeAccess); !errors.Is(err, ErrWrongTokenType) {
		t.Fatalf("expected ErrWrongTokenType, got %v", err)
	}
	if m.MaxLifetime() != 24*time.Hour {
		t.Fatalf("unexpected max lifetime %v", m.MaxLifetime())
	}
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, validClaims(TypeAccess, time.Now().Add(time.Minute)))
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token, TypeAccess); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "kindauth",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	sign := func(c Claims) string {
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	wrongIssuer := validClaims(TypeAccess, time.Now().Add(time.Minute))
	wrongIssuer.Issuer = "other"
	if _, err := m.Parse(sign(wrongIssuer), TypeAccess); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}

	wrongAudience := validClaims(TypeAccess, time.Now().Add(time.Minute))
	wrongAudience.Audience = gjwt.ClaimStrings{"other-api"}
	if _, err := m.Parse(sign(wrongAudience), TypeAccess); err == nil {
		t.Fatal("expected wrong audience to fail")
	}

	within := validClaims(TypeAccess, time.Now().Add(-15*time.Second))
	if _, err := m.Parse(sign(within), TypeAccess); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	expired := sign(validClaims(TypeAccess, time.Now().Add(-2*time.Minute)))
	_, err = m.Parse(expired, TypeAccess)
	if !IsExpired(err) {
		t.Fatalf("expected expired error, got %v", err)
	}
	claims, err := m.ParseIgnoringExpiry(expired)
	if err != nil {
		t.Fatalf("expired token with valid signature must decode: %v", err)
	}
	if claims.ID != "jti-1" {
		t.Fatalf("unexpected jti %q", claims.ID)
	}

	_, otherPriv := newEdKeys(t)
	forged, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, validClaims(TypeAccess, time.Now().Add(-time.Hour))).SignedString(otherPriv)
	if _, err := m.ParseIgnoringExpiry(forged); err == nil {
		t.Fatal("signature must be verified even when expiry is ignored")
	}
}

func TestParseRejectsMissingClaims(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	m, err := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: secret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	c := validClaims(TypeAccess, time.Now().Add(time.Minute))
	c.Issuer = ""
	c.Audience = nil
	c.ID = ""
	token, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, c).SignedString(secret)
	if _, err := m.Parse(token, TypeAccess); !errors.Is(err, ErrMissingClaims) {
		t.Fatalf("expected ErrMissingClaims, got %v", err)
	}

	noSession := validClaims(TypeAccess, time.Now().Add(time.Minute))
	noSession.Issuer = ""
	noSession.Audience = nil
	noSession.SessionID = ""
	token, _ = gjwt.NewWithClaims(gjwt.SigningMethodHS256, noSession).SignedString(secret)
	if _, err := m.Parse(token, TypeAccess); !errors.Is(err, ErrMissingClaims) {
		t.Fatalf("expected ErrMissingClaims without sid, got %v", err)
	}
	if _, _, err := m.Issue("acct-1", "learner", "", TypeAccess); !errors.Is(err, ErrMissingClaims) {
		t.Fatalf("expected Issue to require sid, got %v", err)
	}
}

func TestParseUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys: map[string][]byte{
			"k1": pub1,
		},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	c := validClaims(TypeAccess, time.Now().Add(time.Minute))
	c.Issuer = ""
	c.Audience = nil
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token, TypeAccess); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, _, err := m.Issue("acct-1", "learner", "sid-1", TypeAccess)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(good, TypeAccess); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.Parse(good, TypeAccess); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}
