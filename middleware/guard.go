package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	kindauth "github.com/MrEthical07/kindauth"
	"github.com/MrEthical07/kindauth/model"
)

// Authenticator is satisfied by *kindauth.Engine.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*kindauth.Principal, error)
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal stored by Guard.
func PrincipalFromContext(ctx context.Context) (*kindauth.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*kindauth.Principal)
	return p, ok && p != nil
}

// Guard rejects requests without a valid, unrevoked access token. With kinds
// set, a principal of any other kind gets 403.
func Guard(auth Authenticator, kinds ...model.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			p, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, kindauth.ErrStoreUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !kindAllowed(p.Kind, kinds) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), principalContextKey{}, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireKind restricts a route to the listed account kinds.
func RequireKind(auth Authenticator, kind model.Kind, more ...model.Kind) func(http.Handler) http.Handler {
	return Guard(auth, append([]model.Kind{kind}, more...)...)
}

// ClientIP records the request's peer address with kindauth.WithClientIP.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(kindauth.WithClientIP(r.Context(), host)))
	})
}

func kindAllowed(k model.Kind, kinds []model.Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, allowed := range kinds {
		if k == allowed {
			return true
		}
	}
	return false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
