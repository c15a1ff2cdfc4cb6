package auth

import (
	"net/http"
	"strings"
)

// GeneratePath is the scheduler entry point.
const GeneratePath = "/api/v1/billing/generate"

// Policy determines required roles by request.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth/RBAC.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// IsCronPath reports whether the scheduler secret is accepted for the request.
func (p Policy) IsCronPath(r *http.Request) bool {
	return r != nil && r.Method == http.MethodPost && r.URL.Path == GeneratePath
}

// RequiredRole resolves required role for the request.
func (p Policy) RequiredRole(r *http.Request) (Role, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	method := r.Method
	read := method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions

	switch {
	case path == GeneratePath:
		return RoleAdmin, true
	case path == "/api/v1/obligations" || strings.HasPrefix(path, "/api/v1/obligations/"):
		if read {
			return RoleViewer, true
		}
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/bills/"):
		if read {
			return RoleViewer, true
		}
		if strings.HasSuffix(path, "/status") {
			return RoleOperator, true
		}
		return RoleAdmin, true
	case strings.HasPrefix(path, "/api/v1/meters/"):
		if read {
			return RoleViewer, true
		}
		return RoleOperator, true
	}

	if strings.HasPrefix(path, "/api/") {
		if read {
			return RoleViewer, true
		}
		return RoleOperator, true
	}
	return "", false
}
