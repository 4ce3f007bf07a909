package http

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/applelectricals/microjpeg/adapters/hasher"
	"github.com/applelectricals/microjpeg/pkg/jsonapi"
	"github.com/applelectricals/microjpeg/ports"
)

// AdminToken is a named administrator credential. Hash holds the bcrypt
// hash of the bearer token, never the token itself.
type AdminToken struct {
	Name string
	Hash []byte
}

// AdminAuth verifies administrator bearer tokens. The token list can be
// swapped at runtime when the configuration is reloaded.
type AdminAuth struct {
	hasher ports.Hasher
	tokens atomic.Pointer[[]AdminToken]
}

// NewAdminAuth creates an authenticator over tokens.
func NewAdminAuth(h ports.Hasher, tokens []AdminToken) *AdminAuth {
	a := &AdminAuth{hasher: h}
	a.SetTokens(tokens)
	return a
}

// SetTokens replaces the accepted tokens.
func (a *AdminAuth) SetTokens(tokens []AdminToken) {
	cp := make([]AdminToken, len(tokens))
	copy(cp, tokens)
	a.tokens.Store(&cp)
}

// Authenticate returns the administrator name for the request's token.
func (a *AdminAuth) Authenticate(r *http.Request) (string, bool) {
	token := extractToken(r)
	if token == "" {
		return "", false
	}
	tokens := *a.tokens.Load()
	hashes := make([][]byte, len(tokens))
	for i, t := range tokens {
		hashes[i] = t.Hash
	}
	i := hasher.MatchAny(a.hasher, hashes, token)
	if i < 0 {
		return "", false
	}
	return tokens[i].Name, true
}

type adminKey struct{}

// AdminFromContext returns the authenticated administrator, if any.
func AdminFromContext(ctx context.Context) string {
	name, _ := ctx.Value(adminKey{}).(string)
	return name
}

// Require rejects requests without a valid administrator token.
func (a *AdminAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if extractToken(r) == "" {
			jsonapi.WriteUnauthorized(w, "Administrator token required")
			return
		}
		name, ok := a.Authenticate(r)
		if !ok {
			jsonapi.WriteForbidden(w, "Invalid administrator token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey{}, name)))
	})
}

// extractToken reads "Authorization: Bearer" or X-Admin-Token.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-Admin-Token"))
}
