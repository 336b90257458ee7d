package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeFromCode(t *testing.T) {
	typ, err := TypeFromCode("attraction")
	require.NoError(t, err)
	assert.Equal(t, TypeAttraction, typ)

	// case-insensitive
	typ, err = TypeFromCode("ARTICLEVIEW")
	require.NoError(t, err)
	assert.Equal(t, TypeArticleView, typ)

	typ, err = TypeFromCode("  miniprogramSession ")
	require.NoError(t, err)
	assert.Equal(t, TypeMiniprogramSession, typ)
}

func TestTypeFromCode_Unknown(t *testing.T) {
	_, err := TypeFromCode("bogus")
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = TypeFromCode("")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestPolicyTable_CoversAllTypes(t *testing.T) {
	for _, typ := range Types() {
		p, err := PolicyFor(typ)
		require.NoError(t, err)
		assert.Positive(t, p.MaxSize, "type %s", typ)
		assert.Positive(t, p.TTL, "type %s", typ)
		assert.NotEmpty(t, p.Description, "type %s", typ)
	}
}

func TestRegistry_ReadAfterWrite(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry()
	require.NoError(t, err)
	defer registry.Close()

	for _, typ := range Types() {
		require.NoError(t, registry.Set(ctx, typ, "k", "v"))

		value, found, err := registry.Get(ctx, typ, "k")
		require.NoError(t, err)
		assert.True(t, found, "type %s", typ)
		assert.Equal(t, "v", value, "type %s", typ)
	}
}

func TestRegistry_CachesAreIndependent(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry()
	require.NoError(t, err)
	defer registry.Close()

	require.NoError(t, registry.Set(ctx, TypeProduct, "42", "product"))
	require.NoError(t, registry.Set(ctx, TypeArticle, "42", "article"))

	require.NoError(t, registry.InvalidateType(TypeProduct))

	_, found, err := registry.Get(ctx, TypeProduct, "42")
	require.NoError(t, err)
	assert.False(t, found)

	value, found, err := registry.Get(ctx, TypeArticle, "42")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "article", value)
}

func TestRegistry_UnknownType(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry()
	require.NoError(t, err)
	defer registry.Close()

	_, _, err = registry.Get(ctx, Type("bogus"), "k")
	assert.ErrorIs(t, err, ErrUnknownType)

	err = registry.Set(ctx, Type("bogus"), "k", "v")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistry_Stats(t *testing.T) {
	ctx := context.Background()
	registry, err := NewRegistry()
	require.NoError(t, err)
	defer registry.Close()

	require.NoError(t, registry.Set(ctx, TypeHome, HomeKey, "data"))

	_, _, _ = registry.Get(ctx, TypeHome, HomeKey)       // hit
	_, _, _ = registry.Get(ctx, TypeHome, "nonexistent") // miss

	stats := registry.Stats()
	require.Contains(t, stats, TypeHome)
	assert.Equal(t, uint64(1), stats[TypeHome].Hits)
	assert.Equal(t, uint64(1), stats[TypeHome].Misses)
}
