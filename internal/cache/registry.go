package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type identifies one of the fixed set of named caches.
type Type string

const (
	TypeToken              Type = "token"
	TypeSMS                Type = "sms"
	TypeMiniprogram        Type = "miniprogram"
	TypeHome               Type = "home"
	TypeAttraction         Type = "attraction"
	TypeProduct            Type = "product"
	TypeArticle            Type = "article"
	TypeArticleView        Type = "articleView"
	TypeMiniprogramSession Type = "miniprogramSession"
	TypePayment            Type = "payment"
)

// ErrUnknownType is returned for a cache type outside the fixed set.
var ErrUnknownType = errors.New("unknown cache type")

// SessionKeyPrefix namespaces mini-program session entries within the
// session cache.
const SessionKeyPrefix = "miniprogram:session:"

// HomeKey is the single key under which home page data is cached.
const HomeKey = "home:data"

// Policy fixes the bounds of a named cache. The policy table is
// configuration established at construction, never mutated at runtime.
type Policy struct {
	Description string
	MaxSize     int
	TTL         time.Duration
}

var policies = map[Type]Policy{
	TypeToken:              {"revoked admin token blacklist", 10_000, 24 * time.Hour},
	TypeSMS:                {"SMS verification codes", 10_000, 5 * time.Minute},
	TypeMiniprogram:        {"mini-program configuration", 1_000, 10 * time.Minute},
	TypeHome:               {"home page data", 50, 10 * time.Minute},
	TypeAttraction:         {"attraction details", 5_000, 30 * time.Minute},
	TypeProduct:            {"product details", 5_000, 30 * time.Minute},
	TypeArticle:            {"article details", 5_000, 30 * time.Minute},
	TypeArticleView:        {"article view anti-spam window", 100_000, 5 * time.Minute},
	TypeMiniprogramSession: {"mini-program sessions", 50_000, 30 * 24 * time.Hour}, // matches WeChat session_key validity
	TypePayment:            {"payment configuration", 100, 30 * time.Minute},
}

// Types returns every known cache type in a stable order.
func Types() []Type {
	return []Type{
		TypeToken, TypeSMS, TypeMiniprogram, TypeHome, TypeAttraction,
		TypeProduct, TypeArticle, TypeArticleView, TypeMiniprogramSession,
		TypePayment,
	}
}

// TypeFromCode resolves a cache type from its external code,
// case-insensitively. Returns ErrUnknownType for codes outside the set.
func TypeFromCode(code string) (Type, error) {
	code = strings.TrimSpace(code)
	for _, t := range Types() {
		if strings.EqualFold(string(t), code) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, code)
}

// PolicyFor returns the fixed policy of a cache type.
func PolicyFor(t Type) (Policy, error) {
	p, ok := policies[t]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return p, nil
}

type namedCache struct {
	store  Store
	memory *Memory
}

// Registry owns the fixed set of named caches. Each cache is independently
// bounded and safe for concurrent use; the registry itself is immutable
// after construction and is shared by reference between consumers.
type Registry struct {
	caches map[Type]namedCache
}

// NewRegistry constructs every named cache from the policy table. A missing
// or invalid policy is a construction error, surfaced before the server
// starts serving.
func NewRegistry() (*Registry, error) {
	caches := make(map[Type]namedCache, len(policies))
	for _, t := range Types() {
		p, ok := policies[t]
		if !ok {
			return nil, fmt.Errorf("no policy for cache type %q", t)
		}

		memory, err := NewMemory(p.TTL, p.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("creating %q cache: %w", t, err)
		}

		caches[t] = namedCache{
			store:  NewInstrumented(memory, string(t)),
			memory: memory,
		}
	}

	return &Registry{caches: caches}, nil
}

func (r *Registry) cache(t Type) (namedCache, error) {
	c, ok := r.caches[t]
	if !ok {
		return namedCache{}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	return c, nil
}

// Get retrieves a value from the named cache. Purely in-memory; never blocks
// on I/O.
func (r *Registry) Get(ctx context.Context, t Type, key string) (any, bool, error) {
	c, err := r.cache(t)
	if err != nil {
		return nil, false, err
	}
	return c.store.Get(ctx, key)
}

// Set writes a value to the named cache, resetting the entry's TTL.
func (r *Registry) Set(ctx context.Context, t Type, key string, value any) error {
	c, err := r.cache(t)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, key, value)
}

// Invalidate removes a single entry, used for blacklist and session
// semantics where an entry must be voided before natural expiry.
func (r *Registry) Invalidate(ctx context.Context, t Type, key string) error {
	c, err := r.cache(t)
	if err != nil {
		return err
	}
	return c.store.Invalidate(ctx, key)
}

// InvalidateType discards every entry of one named cache.
func (r *Registry) InvalidateType(t Type) error {
	c, err := r.cache(t)
	if err != nil {
		return err
	}
	c.memory.InvalidateAll()
	return nil
}

// InvalidateAll discards every entry of every named cache.
func (r *Registry) InvalidateAll() {
	for _, c := range r.caches {
		c.memory.InvalidateAll()
	}
}

// Stats returns a snapshot of every cache keyed by type code.
func (r *Registry) Stats() map[Type]Stats {
	out := make(map[Type]Stats, len(r.caches))
	for t, c := range r.caches {
		out[t] = c.memory.Stats()
	}
	return out
}

// Close releases all cache resources.
func (r *Registry) Close() error {
	for _, c := range r.caches {
		_ = c.store.Close()
	}
	return nil
}
