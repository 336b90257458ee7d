package authn

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tripvista/travel-platform/internal/store"
)

// Route prefixes guarded by the two gates. The common prefix is shared: both
// gates inspect it, and a request there may carry either identity.
const (
	AdminPrefix       = "/api/v1/admin/"
	MiniprogramPrefix = "/api/v1/miniprogram/"
	CommonPrefix      = "/api/v1/common/"
)

// adminSkip lists admin paths that never carry a token: the login endpoint
// and first-run initialization.
var adminSkip = []string{
	AdminPrefix + "auth/login",
	AdminPrefix + "init/",
}

// AdminDirectory supplies the account data the gate verifies against,
// implemented by store.AdminUsers.
type AdminDirectory interface {
	FindByID(ctx context.Context, id uint64) (*store.AdminUser, error)
	RoleByID(ctx context.Context, id uint64) (*store.Role, error)
	PermissionCodes(ctx context.Context, roleID uint64) ([]string, error)
}

// AdminGate resolves admin identity from bearer tokens. The gate is
// advisory: it attaches a principal when the token checks out and passes the
// request through untouched otherwise. Rejection is the handlers' decision.
type AdminGate struct {
	codec     *TokenCodec
	users     AdminDirectory
	blacklist *Blacklist
}

func NewAdminGate(codec *TokenCodec, users AdminDirectory, blacklist *Blacklist) *AdminGate {
	return &AdminGate{codec: codec, users: users, blacklist: blacklist}
}

// Middleware returns the admin gate as HTTP middleware.
func (g *AdminGate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if !guarded(path) || skipped(path, adminSkip) {
				next.ServeHTTP(w, r)
				return
			}

			if principal := g.resolve(r); principal != nil {
				r = r.WithContext(ContextWithAdmin(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolve walks the full verification chain. Any failed step means no
// principal; the specific reason is only ever logged.
func (g *AdminGate) resolve(r *http.Request) *AdminPrincipal {
	token, ok := BearerToken(r)
	if !ok {
		return nil
	}

	claims, err := g.codec.Validate(token)
	if err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("admin token rejected")
		return nil
	}
	if claims.TokenType != TokenTypeAdmin {
		log.Debug().Str("path", r.URL.Path).Str("type", claims.TokenType).
			Msg("non-admin token on admin surface")
		return nil
	}

	ctx := r.Context()
	if g.blacklist.Revoked(ctx, token) {
		log.Debug().Uint64("user_id", claims.UserID).Msg("admin token revoked")
		return nil
	}

	user, err := g.users.FindByID(ctx, claims.UserID)
	if err != nil {
		log.Debug().Err(err).Uint64("user_id", claims.UserID).Msg("admin account lookup failed")
		return nil
	}
	if !user.Active() {
		log.Debug().Uint64("user_id", user.ID).Msg("admin account disabled")
		return nil
	}

	principal := &AdminPrincipal{
		UserID:   user.ID,
		Username: user.Username,
	}

	// role and permission resolution failures degrade to an identity with no
	// permissions rather than dropping the principal
	if role, err := g.users.RoleByID(ctx, user.RoleID); err == nil {
		principal.RoleCode = role.Code
		if codes, err := g.users.PermissionCodes(ctx, role.ID); err == nil {
			principal.Permissions = codes
		}
	}

	return principal
}

func guarded(path string) bool {
	return strings.HasPrefix(path, AdminPrefix) || strings.HasPrefix(path, CommonPrefix)
}

// skipped matches by prefix so detail routes under a public collection stay
// public as well.
func skipped(path string, skips []string) bool {
	for _, skip := range skips {
		if strings.HasPrefix(path, skip) {
			return true
		}
	}
	return false
}
