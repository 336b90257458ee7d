package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrNoIDs is returned when an id-addressed cache is refreshed without ids.
var ErrNoIDs = errors.New("refresh requires at least one id")

// Unit is one item of refresh work: fetch the fresh value for a single cache
// key. Fetch runs on a pool worker for asynchronous refreshes and must be
// safe to call concurrently with other units.
type Unit struct {
	Key   string
	Fetch func(ctx context.Context) (any, error)
}

// Source plans the work for refreshing one cache type. Plan runs on the
// submitting goroutine and must stay cheap: it expands the request into
// per-key units without fetching any data.
type Source interface {
	Plan(ctx context.Context, ids []int64) ([]Unit, error)
}

// EntitySource refreshes id-addressed caches (attractions, products,
// articles). Each unit fetches one entity by its primary key; the cache key
// is the decimal id.
func EntitySource(fetch func(ctx context.Context, id int64) (any, error)) Source {
	return entitySource(fetch)
}

type entitySource func(ctx context.Context, id int64) (any, error)

func (f entitySource) Plan(_ context.Context, ids []int64) ([]Unit, error) {
	if len(ids) == 0 {
		return nil, ErrNoIDs
	}

	units := make([]Unit, len(ids))
	for i, id := range ids {
		id := id
		units[i] = Unit{
			Key: strconv.FormatInt(id, 10),
			Fetch: func(ctx context.Context) (any, error) {
				return f(ctx, id)
			},
		}
	}
	return units, nil
}

// SingletonSource refreshes caches holding one aggregate entry under a fixed
// key, such as the home page payload. Ids are ignored.
func SingletonSource(key string, fetch func(ctx context.Context) (any, error)) Source {
	return &singletonSource{key: key, fetch: fetch}
}

type singletonSource struct {
	key   string
	fetch func(ctx context.Context) (any, error)
}

func (s *singletonSource) Plan(context.Context, []int64) ([]Unit, error) {
	return []Unit{{Key: s.key, Fetch: s.fetch}}, nil
}

// SetSource refreshes caches covering a whole keyed set, such as the
// mini-program configuration entries. The key set is resolved during
// planning; each unit then fetches one key's value. Ids are ignored.
func SetSource(
	keys func(ctx context.Context) ([]string, error),
	fetch func(ctx context.Context, key string) (any, error),
) Source {
	return &setSource{keys: keys, fetch: fetch}
}

type setSource struct {
	keys  func(ctx context.Context) ([]string, error)
	fetch func(ctx context.Context, key string) (any, error)
}

func (s *setSource) Plan(ctx context.Context, _ []int64) ([]Unit, error) {
	keys, err := s.keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving refresh key set: %w", err)
	}

	units := make([]Unit, len(keys))
	for i, key := range keys {
		key := key
		units[i] = Unit{
			Key: key,
			Fetch: func(ctx context.Context) (any, error) {
				return s.fetch(ctx, key)
			},
		}
	}
	return units, nil
}
