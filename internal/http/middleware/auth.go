package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/docktorek/docktorek-api/internal/http/respond"
	"github.com/docktorek/docktorek-api/internal/identity"
)

// AuthClaims is the token shape the gateway issues: the subject is the
// account id, role says whether it is a patient or a doctor.
type AuthClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// BearerAuth validates HS256 bearer tokens and attaches the resolved caller
// to the request context. An empty secret rejects every request rather than
// silently disabling auth.
func BearerAuth(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				respond.Error(w, http.StatusUnauthorized, "unauthenticated", "auth not configured")
			})
		}
	}
	key := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				respond.Error(w, http.StatusUnauthorized, "unauthenticated", "missing authorization header")
				return
			}
			tokenString := strings.TrimPrefix(auth, "Bearer ")

			claims := &AuthClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return key, nil
			}, jwt.WithExpirationRequired())
			if err != nil || !token.Valid {
				respond.Error(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
				return
			}

			id, err := uuid.Parse(claims.Subject)
			if err != nil || id == uuid.Nil {
				respond.Error(w, http.StatusUnauthorized, "unauthenticated", "invalid subject")
				return
			}
			role := identity.Role(claims.Role)
			if !role.Valid() {
				respond.Error(w, http.StatusUnauthorized, "unauthenticated", "unknown role")
				return
			}

			ctx := identity.WithCaller(r.Context(), identity.Caller{ID: id, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
