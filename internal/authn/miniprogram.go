package authn

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// SessionCookie is the fallback session carrier for clients that cannot set
// custom headers.
const SessionCookie = "session_id"

// miniprogramSkip lists mini-program paths served without a session: the
// auth endpoints themselves and the public catalog.
var miniprogramSkip = []string{
	MiniprogramPrefix + "auth/login",
	MiniprogramPrefix + "auth/logout",
	MiniprogramPrefix + "auth/refresh",
	MiniprogramPrefix + "home",
	MiniprogramPrefix + "config/",
	MiniprogramPrefix + "categories",
	MiniprogramPrefix + "attractions",
	MiniprogramPrefix + "hotels",
	MiniprogramPrefix + "products",
	MiniprogramPrefix + "articles",
}

// MiniprogramGate resolves mini-program identity from opaque session ids.
// Like the admin gate it is advisory: a missing or dead session attaches
// nothing and the request proceeds.
type MiniprogramGate struct {
	sessions *Sessions
	header   string
}

func NewMiniprogramGate(sessions *Sessions, header string) *MiniprogramGate {
	return &MiniprogramGate{sessions: sessions, header: header}
}

// Middleware returns the mini-program gate as HTTP middleware.
func (g *MiniprogramGate) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if !g.guarded(path) || skipped(path, miniprogramSkip) {
				next.ServeHTTP(w, r)
				return
			}

			// on the shared common surface the admin gate runs first; an
			// already-authenticated admin request keeps that identity
			if AdminFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			if principal := g.resolve(r); principal != nil {
				r = r.WithContext(ContextWithMiniprogram(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *MiniprogramGate) guarded(path string) bool {
	return strings.HasPrefix(path, MiniprogramPrefix) || strings.HasPrefix(path, CommonPrefix)
}

func (g *MiniprogramGate) resolve(r *http.Request) *MiniprogramPrincipal {
	id := g.sessionID(r)
	if id == "" {
		return nil
	}

	session, found, err := g.sessions.Lookup(r.Context(), id)
	if err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("session lookup failed")
		return nil
	}
	if !found {
		return nil
	}

	return &MiniprogramPrincipal{
		UserID: session.UserID,
		OpenID: session.OpenID,
	}
}

// sessionID reads the session id from the configured header, falling back to
// the session cookie.
func (g *MiniprogramGate) sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(g.header)); id != "" {
		return id
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
