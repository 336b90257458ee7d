package authn

import "context"

// AdminPrincipal is the identity attached by the admin gate. Presence on the
// request context means a valid admin token was presented; handlers decide
// what to do when it is absent.
type AdminPrincipal struct {
	UserID      uint64
	Username    string
	RoleCode    string
	Permissions []string
}

// HasPermission reports whether the principal carries a permission code.
func (p *AdminPrincipal) HasPermission(code string) bool {
	for _, c := range p.Permissions {
		if c == code {
			return true
		}
	}
	return false
}

// MiniprogramPrincipal is the identity attached by the mini-program gate.
type MiniprogramPrincipal struct {
	UserID uint64
	OpenID string
}

type adminContextKey struct{}

type miniprogramContextKey struct{}

// ContextWithAdmin returns a context carrying an admin principal.
func ContextWithAdmin(ctx context.Context, principal *AdminPrincipal) context.Context {
	return context.WithValue(ctx, adminContextKey{}, principal)
}

// AdminFromContext returns the admin principal attached by the gate, or nil
// when the request was not authenticated as an admin.
func AdminFromContext(ctx context.Context) *AdminPrincipal {
	principal, _ := ctx.Value(adminContextKey{}).(*AdminPrincipal)
	return principal
}

// ContextWithMiniprogram returns a context carrying a mini-program principal.
func ContextWithMiniprogram(ctx context.Context, principal *MiniprogramPrincipal) context.Context {
	return context.WithValue(ctx, miniprogramContextKey{}, principal)
}

// MiniprogramFromContext returns the mini-program principal attached by the
// gate, or nil when no valid session was presented.
func MiniprogramFromContext(ctx context.Context) *MiniprogramPrincipal {
	principal, _ := ctx.Value(miniprogramContextKey{}).(*MiniprogramPrincipal)
	return principal
}
