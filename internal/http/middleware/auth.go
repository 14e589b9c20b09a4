package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"transport-pricing-service/internal/domain"
	"transport-pricing-service/internal/http/response"
	"transport-pricing-service/internal/security"
)

type Principal struct {
	UserID uint
	Role   domain.UserRole
}

type principalContextKey struct{}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Authenticator resolves the caller's identity and role from a bearer token.
// Everything beyond that resolution belongs to the identity service upstream.
func Authenticator(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token", nil)
				return
			}
			userID, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil || userID == 0 {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid subject", nil)
				return
			}
			role := domain.UserRole(strings.ToLower(claims.Role))
			if role != domain.RoleAdmin && role != domain.RoleAgent {
				role = domain.RoleAgent
			}
			principal := Principal{UserID: uint(userID), Role: role}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}
