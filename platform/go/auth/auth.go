// Package auth provides bearer-token middleware and the request identity it
// attaches. Tokens are HS256 JWTs carrying the user id, role and owning
// tenant id; downstream middleware trusts the tenant claim completely.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey struct{}

// Identity is the verified request identity extracted from a bearer token.
type Identity struct {
	UserID   string
	Email    string
	Role     string
	TenantID string
}

// Roles recognised across the platform.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// IdentityFromContext extracts the identity and a boolean indicating presence.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	v := ctx.Value(ctxKey{})
	if v == nil {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok
}

// WithIdentity stores the identity on the context. Exposed for tests and
// internal tooling that bypass the HTTP middleware.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

type tokenClaims struct {
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens signed with a shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a Verifier; the secret must not be empty.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates the token, returning the identity it carries.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	var claims tokenClaims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing subject")
	}
	return &Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Role:     claims.Role,
		TenantID: claims.TenantID,
	}, nil
}

// IssueToken signs a bearer token for the given identity with the provided TTL.
func (v *Verifier) IssueToken(id Identity, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		Email:    id.Email,
		Role:     id.Role,
		TenantID: id.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware parses the Authorization header and sets the request identity.
// Requests without a token pass through unauthenticated; route groups that
// need an identity enforce it via Require / RequireRole.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	if verifier == nil {
		panic("auth.Middleware: verifier is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token, found := extractBearerToken(r)
			if !found {
				next.ServeHTTP(w, r)
				return
			}

			id, err := verifier.Verify(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="api", error="invalid_token", error_description="%s"`, err.Error()))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Require rejects unauthenticated requests.
func Require() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := IdentityFromContext(r.Context()); !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole gates a route group to the listed roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok || id == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !allowed[id.Role] {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
