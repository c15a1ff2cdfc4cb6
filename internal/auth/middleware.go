package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// CronSubject identifies requests authenticated with the scheduler secret.
const CronSubject = "cron"

// Middleware validates JWTs and enforces RBAC. Requests to cron paths may instead
// present the shared scheduler secret as their bearer token.
type Middleware struct {
	Secret     []byte
	CronSecret []byte
	Policy     Policy
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret, cronSecret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, CronSecret: cronSecret, Policy: policy}
}

// Wrap applies auth and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearer(r)
		if m.Policy.IsCronPath(r) && m.cronTokenValid(token) {
			ctx := WithIdentity(r.Context(), RoleAdmin, CronSubject)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		claims, err := ParseJWT(token, m.Secret)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		role, _ := NormalizeRole(claims.Role)
		if !RoleAtLeast(role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		ctx := WithIdentity(r.Context(), role, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) cronTokenValid(token string) bool {
	if len(m.CronSecret) == 0 || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), m.CronSecret) == 1
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
