package authn

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tripvista/travel-platform/internal/cache"
)

// Session is the server-side state behind a mini-program session id. The id
// handed to the client is opaque; everything sensitive stays in this record.
type Session struct {
	UserID     uint64    `json:"user_id"`
	OpenID     string    `json:"openid"`
	SessionKey string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Sessions manages mini-program sessions in the session cache. Session
// lifetime comes from the cache's TTL; an evicted or expired entry is simply
// a logged-out session.
type Sessions struct {
	registry *cache.Registry
}

func NewSessions(registry *cache.Registry) *Sessions {
	return &Sessions{registry: registry}
}

// Issue stores the session and returns its new opaque id.
func (s *Sessions) Issue(ctx context.Context, session *Session) (string, error) {
	id := uuid.NewString()
	session.CreatedAt = time.Now()

	err := s.registry.Set(ctx, cache.TypeMiniprogramSession, cache.SessionKeyPrefix+id, session)
	if err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return id, nil
}

// Lookup resolves a session id. A missing entry is not an error: it is the
// normal state of an expired or revoked session.
func (s *Sessions) Lookup(ctx context.Context, id string) (*Session, bool, error) {
	value, found, err := s.registry.Get(ctx, cache.TypeMiniprogramSession, cache.SessionKeyPrefix+id)
	if err != nil || !found {
		return nil, false, err
	}

	session, ok := value.(*Session)
	if !ok {
		return nil, false, fmt.Errorf("unexpected session entry type %T", value)
	}
	return session, true, nil
}

// Invalidate revokes a session before its natural expiry.
func (s *Sessions) Invalidate(ctx context.Context, id string) error {
	return s.registry.Invalidate(ctx, cache.TypeMiniprogramSession, cache.SessionKeyPrefix+id)
}

// Blacklist voids admin tokens ahead of their JWT expiry. Entries live in the
// token cache, whose TTL matches the token validity.
type Blacklist struct {
	registry *cache.Registry
}

func NewBlacklist(registry *cache.Registry) *Blacklist {
	return &Blacklist{registry: registry}
}

// Revoke records a token as logged out.
func (b *Blacklist) Revoke(ctx context.Context, token string) error {
	return b.registry.Set(ctx, cache.TypeToken, token, true)
}

// Revoked reports whether a token has been logged out.
func (b *Blacklist) Revoked(ctx context.Context, token string) bool {
	_, found, err := b.registry.Get(ctx, cache.TypeToken, token)
	return err == nil && found
}
