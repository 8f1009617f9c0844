package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(client, logger), mr
}

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ---------------------------------------------------------------------------
// GetOrCompute
// ---------------------------------------------------------------------------

func TestGetOrCompute_MissComputesAndStores(t *testing.T) {
	c, mr := setupTestCache(t)

	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Name: "widgets", Count: 3}, nil
	}

	got, err := GetOrCompute(context.Background(), c, "products_list_abc", []string{TagProducts}, compute)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, 1, calls)

	// The entry landed in Redis with a TTL inside the jitter window.
	assert.True(t, mr.Exists("products_list_abc"))
	ttl := mr.TTL("products_list_abc")
	assert.GreaterOrEqual(t, ttl, ttlMin)
	assert.Less(t, ttl, ttlMax)

	// Second call is served from cache.
	got, err = GetOrCompute(context.Background(), c, "products_list_abc", []string{TagProducts}, compute)
	require.NoError(t, err)
	assert.Equal(t, "widgets", got.Name)
	assert.Equal(t, 1, calls)
}

func TestGetOrCompute_TagMembershipRecorded(t *testing.T) {
	c, mr := setupTestCache(t)

	_, err := GetOrCompute(context.Background(), c, "product_1", []string{TagProducts},
		func(context.Context) (payload, error) { return payload{}, nil })
	require.NoError(t, err)

	members, err := mr.SMembers(tagKeyPrefix + TagProducts)
	require.NoError(t, err)
	assert.Contains(t, members, "product_1")
}

func TestGetOrCompute_ComputeErrorNotCached(t *testing.T) {
	c, mr := setupTestCache(t)

	wantErr := errors.New("db down")
	_, err := GetOrCompute(context.Background(), c, "product_1", []string{TagProducts},
		func(context.Context) (payload, error) { return payload{}, wantErr })
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, mr.Exists("product_1"))
}

func TestGetOrCompute_CorruptEntryRecomputed(t *testing.T) {
	c, mr := setupTestCache(t)

	require.NoError(t, mr.Set("product_1", "{not json"))

	got, err := GetOrCompute(context.Background(), c, "product_1", []string{TagProducts},
		func(context.Context) (payload, error) { return payload{Name: "fresh"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)
}

func TestGetOrCompute_RedisDownFailsOpen(t *testing.T) {
	c, mr := setupTestCache(t)
	mr.Close()

	got, err := GetOrCompute(context.Background(), c, "product_1", []string{TagProducts},
		func(context.Context) (payload, error) { return payload{Name: "direct"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "direct", got.Name)
}

// ---------------------------------------------------------------------------
// Forget / FlushTag
// ---------------------------------------------------------------------------

func TestForget_RemovesSingleEntry(t *testing.T) {
	c, mr := setupTestCache(t)

	require.NoError(t, mr.Set("product_1", `{"name":"x"}`))
	require.NoError(t, mr.Set("product_2", `{"name":"y"}`))

	c.Forget(context.Background(), "product_1")

	assert.False(t, mr.Exists("product_1"))
	assert.True(t, mr.Exists("product_2"))
}

func TestFlushTag_RemovesAllTaggedEntries(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	for _, key := range []string{"product_1", "products_list_a", "products_list_b"} {
		_, err := GetOrCompute(ctx, c, key, []string{TagProducts},
			func(context.Context) (payload, error) { return payload{}, nil })
		require.NoError(t, err)
	}

	c.FlushTag(ctx, TagProducts)

	calls := 0
	_, err := GetOrCompute(ctx, c, "products_list_a", []string{TagProducts},
		func(context.Context) (payload, error) {
			calls++
			return payload{}, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestFlushTag_LeavesUntaggedEntries(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	_, err := GetOrCompute(ctx, c, "products_list_a", []string{TagProducts},
		func(context.Context) (payload, error) { return payload{}, nil })
	require.NoError(t, err)
	require.NoError(t, mr.Set("unrelated", "1"))

	c.FlushTag(ctx, TagProducts)

	assert.False(t, mr.Exists("products_list_a"))
	assert.True(t, mr.Exists("unrelated"))
}

// ---------------------------------------------------------------------------
// Get / Put
// ---------------------------------------------------------------------------

func TestGetPut_RoundTrip(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	_, ok := Get[payload](ctx, c, "products_search_x")
	assert.False(t, ok)

	c.Put(ctx, "products_search_x", []string{TagProducts}, payload{Name: "cached", Count: 7})

	got, ok := Get[payload](ctx, c, "products_search_x")
	require.True(t, ok)
	assert.Equal(t, "cached", got.Name)
	assert.Equal(t, 7, got.Count)
}

// ---------------------------------------------------------------------------
// key derivation
// ---------------------------------------------------------------------------

func TestListKey_OrderIndependent(t *testing.T) {
	a := ListKey("products_list", map[string]string{"page": "1", "category": "tools", "status": "active"})
	b := ListKey("products_list", map[string]string{"status": "active", "category": "tools", "page": "1"})
	assert.Equal(t, a, b)
}

func TestListKey_EmptyParamsIgnored(t *testing.T) {
	a := ListKey("products_list", map[string]string{"page": "1", "category": ""})
	b := ListKey("products_list", map[string]string{"page": "1"})
	assert.Equal(t, a, b)
}

func TestListKey_DiffersByValue(t *testing.T) {
	a := ListKey("products_list", map[string]string{"page": "1"})
	b := ListKey("products_list", map[string]string{"page": "2"})
	assert.NotEqual(t, a, b)
}

func TestListKey_SeparatorsInValuesDoNotCollide(t *testing.T) {
	// A free-text query value carrying "&" or "=" must not fingerprint the
	// same as a request where those pieces arrived as separate parameters.
	a := ListKey("products_search", map[string]string{"q": "x&status=active"})
	b := ListKey("products_search", map[string]string{"q": "x", "status": "active"})
	assert.NotEqual(t, a, b)

	c := ListKey("products_search", map[string]string{"q": "a=b"})
	d := ListKey("products_search", map[string]string{"q": "a", "a": "b"})
	assert.NotEqual(t, c, d)
}

func TestItemKey(t *testing.T) {
	assert.Equal(t, "product_abc-123", ItemKey("abc-123"))
}

func TestShouldBypass(t *testing.T) {
	assert.False(t, ShouldBypass(1))
	assert.False(t, ShouldBypass(50))
	assert.True(t, ShouldBypass(51))
}
