package authn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripvista/travel-platform/internal/cache"
	"github.com/tripvista/travel-platform/internal/store"
)

type fakeDirectory struct {
	users       map[uint64]*store.AdminUser
	roles       map[uint64]*store.Role
	permissions map[uint64][]string
}

func (d *fakeDirectory) FindByID(_ context.Context, id uint64) (*store.AdminUser, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, store.ErrAdminUserNotFound
	}
	return user, nil
}

func (d *fakeDirectory) RoleByID(_ context.Context, id uint64) (*store.Role, error) {
	role, ok := d.roles[id]
	if !ok {
		return nil, store.ErrRoleNotFound
	}
	return role, nil
}

func (d *fakeDirectory) PermissionCodes(_ context.Context, roleID uint64) ([]string, error) {
	return d.permissions[roleID], nil
}

type gateFixture struct {
	registry  *cache.Registry
	codec     *TokenCodec
	sessions  *Sessions
	blacklist *Blacklist
	directory *fakeDirectory
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	registry, err := cache.NewRegistry()
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close() })

	return &gateFixture{
		registry:  registry,
		codec:     NewTokenCodec(testAuthConfig()),
		sessions:  NewSessions(registry),
		blacklist: NewBlacklist(registry),
		directory: &fakeDirectory{
			users: map[uint64]*store.AdminUser{
				7: {ID: 7, Username: "operator", RoleID: 2, Status: 1},
				9: {ID: 9, Username: "disabled", RoleID: 2, Status: 0},
			},
			roles: map[uint64]*store.Role{
				2: {ID: 2, Code: "content_admin"},
			},
			permissions: map[uint64][]string{
				2: {"cache:refresh", "article:write"},
			},
		},
	}
}

// capture records the principals visible to the downstream handler.
func capture(admin **AdminPrincipal, mini **MiniprogramPrincipal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if admin != nil {
			*admin = AdminFromContext(r.Context())
		}
		if mini != nil {
			*mini = MiniprogramFromContext(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAdminGate_AttachesPrincipal(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewAdminGate(fix.codec, fix.directory, fix.blacklist)

	token, err := fix.codec.Issue(TokenTypeAdmin, 7, "operator")
	require.NoError(t, err)

	var principal *AdminPrincipal
	handler := gate.Middleware()(capture(&principal, nil))

	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cache/refresh", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, principal)
	assert.Equal(t, uint64(7), principal.UserID)
	assert.Equal(t, "content_admin", principal.RoleCode)
	assert.True(t, principal.HasPermission("cache:refresh"))
}

func TestAdminGate_AdvisoryOnMissingToken(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewAdminGate(fix.codec, fix.directory, fix.blacklist)

	var principal *AdminPrincipal
	handler := gate.Middleware()(capture(&principal, nil))

	// no Authorization header: request still reaches the handler
	r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/cache/stats", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, principal)
}

func TestAdminGate_RejectsMiniprogramToken(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewAdminGate(fix.codec, fix.directory, fix.blacklist)

	// a token tagged for the other surface must not grant admin identity
	token, err := fix.codec.Issue(TokenTypeMiniprogram, 7, "")
	require.NoError(t, err)

	var principal *AdminPrincipal
	handler := gate.Middleware()(capture(&principal, nil))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/cache/stats", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, principal)
}

func TestAdminGate_RejectsRevokedToken(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewAdminGate(fix.codec, fix.directory, fix.blacklist)

	token, err := fix.codec.Issue(TokenTypeAdmin, 7, "operator")
	require.NoError(t, err)
	require.NoError(t, fix.blacklist.Revoke(context.Background(), token))

	var principal *AdminPrincipal
	handler := gate.Middleware()(capture(&principal, nil))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/cache/stats", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Nil(t, principal)
}

func TestAdminGate_RejectsDisabledAccount(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewAdminGate(fix.codec, fix.directory, fix.blacklist)

	token, err := fix.codec.Issue(TokenTypeAdmin, 9, "disabled")
	require.NoError(t, err)

	var principal *AdminPrincipal
	handler := gate.Middleware()(capture(&principal, nil))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/cache/stats", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Nil(t, principal)
}

func TestAdminGate_SkipsLoginAndUnguardedPaths(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewAdminGate(fix.codec, fix.directory, fix.blacklist)

	for _, path := range []string{
		"/api/v1/admin/auth/login",
		"/api/v1/admin/init/root",
		"/api/v1/miniprogram/home/data",
		"/healthcheck",
	} {
		var principal *AdminPrincipal
		handler := gate.Middleware()(capture(&principal, nil))

		// a malformed token on a skipped path must not disturb the request
		r := httptest.NewRequest(http.MethodPost, path, nil)
		r.Header.Set("Authorization", "Bearer garbage")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Nil(t, principal, path)
	}
}

func TestMiniprogramGate_AttachesPrincipalFromHeader(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewMiniprogramGate(fix.sessions, "X-Session-Id")

	id, err := fix.sessions.Issue(context.Background(), &Session{UserID: 42, OpenID: "wx-open-42"})
	require.NoError(t, err)

	var principal *MiniprogramPrincipal
	handler := gate.Middleware()(capture(nil, &principal))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/miniprogram/auth/info", nil)
	r.Header.Set("X-Session-Id", id)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, principal)
	assert.Equal(t, uint64(42), principal.UserID)
	assert.Equal(t, "wx-open-42", principal.OpenID)
}

func TestMiniprogramGate_CookieFallback(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewMiniprogramGate(fix.sessions, "X-Session-Id")

	id, err := fix.sessions.Issue(context.Background(), &Session{UserID: 42, OpenID: "wx-open-42"})
	require.NoError(t, err)

	var principal *MiniprogramPrincipal
	handler := gate.Middleware()(capture(nil, &principal))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/miniprogram/auth/info", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.NotNil(t, principal)
	assert.Equal(t, uint64(42), principal.UserID)
}

func TestMiniprogramGate_AdvisoryOnDeadSession(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewMiniprogramGate(fix.sessions, "X-Session-Id")

	var principal *MiniprogramPrincipal
	handler := gate.Middleware()(capture(nil, &principal))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/miniprogram/auth/info", nil)
	r.Header.Set("X-Session-Id", "no-such-session")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, principal)
}

func TestMiniprogramGate_InvalidatedSessionStopsResolving(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewMiniprogramGate(fix.sessions, "X-Session-Id")

	ctx := context.Background()
	id, err := fix.sessions.Issue(ctx, &Session{UserID: 42, OpenID: "wx-open-42"})
	require.NoError(t, err)
	require.NoError(t, fix.sessions.Invalidate(ctx, id))

	var principal *MiniprogramPrincipal
	handler := gate.Middleware()(capture(nil, &principal))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/miniprogram/auth/info", nil)
	r.Header.Set("X-Session-Id", id)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Nil(t, principal)
}

func TestGates_CommonSurfaceKeepsAdminIdentity(t *testing.T) {
	fix := newGateFixture(t)
	adminGate := NewAdminGate(fix.codec, fix.directory, fix.blacklist)
	miniGate := NewMiniprogramGate(fix.sessions, "X-Session-Id")

	token, err := fix.codec.Issue(TokenTypeAdmin, 7, "operator")
	require.NoError(t, err)
	sessionID, err := fix.sessions.Issue(context.Background(), &Session{UserID: 42, OpenID: "wx"})
	require.NoError(t, err)

	var admin *AdminPrincipal
	var mini *MiniprogramPrincipal
	handler := adminGate.Middleware()(miniGate.Middleware()(capture(&admin, &mini)))

	// both credentials presented on the shared surface: admin wins
	r := httptest.NewRequest(http.MethodPost, "/api/v1/common/upload", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	r.Header.Set("X-Session-Id", sessionID)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	require.NotNil(t, admin)
	assert.Nil(t, mini)
}

func TestMiniprogramGate_SkipsPublicCatalog(t *testing.T) {
	fix := newGateFixture(t)
	gate := NewMiniprogramGate(fix.sessions, "X-Session-Id")

	var principal *MiniprogramPrincipal
	handler := gate.Middleware()(capture(nil, &principal))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/miniprogram/attractions", nil)
	r.Header.Set("X-Session-Id", "no-such-session")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, principal)
}
