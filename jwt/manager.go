package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

// TokenType separates access from refresh tokens; each is rejected where the
// other is expected.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

var (
	// ErrWrongTokenType is returned when a refresh token is presented as an
	// access token or the reverse.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrMissingClaims is returned when jti, sub, knd or sid is empty.
	ErrMissingClaims = errors.New("token missing required claims")
)

// Config holds key material and lifetimes. PrivateKey is the HMAC secret for
// hs256, or the ed25519 private key (raw or PEM) for ed25519.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	MaxFutureIAT  time.Duration
	Now           func() time.Time
}

// Manager signs and parses tokens. It is safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the payload of every kindauth token.
// SessionID is shared by every token of one login, refresh rotations
// included, so a whole session can be revoked through one id.
type Claims struct {
	Kind      string    `json:"knd"`
	Type      TokenType `json:"typ"`
	SessionID string    `json:"sid"`
	jwt.RegisteredClaims
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// MaxLifetime is the longest a token issued by m can stay valid, leeway
// included. Blacklist entries older than this are safe to drop.
func (j *Manager) MaxLifetime() time.Duration {
	ttl := j.config.AccessTTL
	if j.config.RefreshTTL > ttl {
		ttl = j.config.RefreshTTL
	}
	return ttl + j.config.Leeway
}

// Issue signs a token of type typ for subject sub of the given kind inside
// session sid.
func (j *Manager) Issue(sub, kind, sid string, typ TokenType) (string, *Claims, error) {
	if sub == "" || kind == "" || sid == "" {
		return "", nil, ErrMissingClaims
	}
	ttl := j.config.AccessTTL
	switch typ {
	case TypeAccess:
	case TypeRefresh:
		ttl = j.config.RefreshTTL
	default:
		return "", nil, ErrWrongTokenType
	}

	now := j.config.Now()
	claims := &Claims{
		Kind:      kind,
		Type:      typ,
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sub,
			Issuer:    j.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}
	signKey, err := j.getSignKey()
	if err != nil {
		return "", nil, err
	}
	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies signature, expiry, issuer, audience and type.
func (j *Manager) Parse(tokenStr string, want TokenType) (*Claims, error) {
	return j.parse(tokenStr, want, true)
}

// ParseIgnoringExpiry verifies the signature but skips time-based claims. It
// is used to revoke tokens that may already have expired.
func (j *Manager) ParseIgnoringExpiry(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr, "", false)
}

func (j *Manager) parse(tokenStr string, want TokenType, validateClaims bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithTimeFunc(j.config.Now),
	}
	if validateClaims {
		options = append(options, jwt.WithExpirationRequired())
		if j.config.Leeway > 0 {
			options = append(options, jwt.WithLeeway(j.config.Leeway))
		}
		if j.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(j.config.Issuer))
		}
		if j.config.Audience != "" {
			options = append(options, jwt.WithAudience(j.config.Audience))
		}
	} else {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, j.keyFunc)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.ID == "" || claims.Subject == "" || claims.Kind == "" || claims.SessionID == "" {
		return nil, ErrMissingClaims
	}
	if want != "" && claims.Type != want {
		return nil, ErrWrongTokenType
	}
	if validateClaims && claims.IssuedAt != nil {
		if claims.IssuedAt.Time.After(j.config.Now().Add(j.config.MaxFutureIAT)) {
			return nil, errors.New("token iat too far in the future")
		}
	}
	return claims, nil
}

// IsExpired reports whether err came from an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

func (j *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != j.getMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(j.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := j.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return j.keyBytesToVerifyKey(key)
	}

	if j.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != j.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return j.getVerifyKey()
}

func (j *Manager) getMethod() jwt.SigningMethod {
	if j.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (j *Manager) getSignKey() (interface{}, error) {
	if j.config.SigningMethod == MethodHS256 {
		return j.config.PrivateKey, nil
	}
	if len(j.config.PrivateKey) == 0 {
		return nil, errors.New("manager has no signing key")
	}
	return parseEdPrivateKey(j.config.PrivateKey)
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	if j.config.SigningMethod == MethodHS256 {
		return j.config.PrivateKey, nil
	}
	return parseEdPublicKey(j.config.PublicKey)
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	if j.config.SigningMethod == MethodHS256 {
		return key, nil
	}
	return parseEdPublicKey(key)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
