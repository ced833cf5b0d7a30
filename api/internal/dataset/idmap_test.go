package dataset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetcherFunc func(ctx context.Context) (map[string]string, error)

func (f fetcherFunc) InChIKeyMap(ctx context.Context) (map[string]string, error) { return f(ctx) }

func newRedisCache(t *testing.T) (*RedisIDMapCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisIDMapCache(client, time.Hour), mr
}

func TestResolvePrefersFile(t *testing.T) {
	src := memSource{"idmap.csv": "inchi_key,qid\nKEY-A,Q1\nKEY-B,Q2\n,Q3\n"}
	resolver := IDMapResolver{
		Source: src,
		File:   "idmap.csv",
		Fetcher: fetcherFunc(func(context.Context) (map[string]string, error) {
			t.Fatalf("fetcher must not be called when the file is usable")
			return nil, nil
		}),
	}
	reverse, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Q1": "KEY-A", "Q2": "KEY-B"}, reverse)
}

func TestResolveFallsBackToFetcherAndCaches(t *testing.T) {
	cache, mr := newRedisCache(t)
	calls := 0
	resolver := IDMapResolver{
		Source: memSource{},
		File:   "missing.csv",
		Cache:  cache,
		Fetcher: fetcherFunc(func(context.Context) (map[string]string, error) {
			calls++
			return map[string]string{"KEY-A": "Q1", "KEY-B": "Q2"}, nil
		}),
	}

	reverse, err := resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Q1": "KEY-A", "Q2": "KEY-B"}, reverse)
	assert.Equal(t, "KEY-A", mr.HGet("reframe:idmap:qid", "Q1"))
	assert.Equal(t, time.Hour, mr.TTL("reframe:idmap:qid"))

	reverse, err = resolver.Resolve(context.Background())
	require.NoError(t, err)
	assert.Len(t, reverse, 2)
	assert.Equal(t, 1, calls, "second resolve should hit the cache")
}

func TestResolveFailsWithoutSources(t *testing.T) {
	_, err := IDMapResolver{}.Resolve(context.Background())
	assert.True(t, errors.Is(err, ErrNoIDMap))

	boom := errors.New("sparql down")
	_, err = IDMapResolver{Fetcher: fetcherFunc(func(context.Context) (map[string]string, error) {
		return nil, boom
	})}.Resolve(context.Background())
	assert.True(t, errors.Is(err, ErrNoIDMap))

	_, err = IDMapResolver{Fetcher: fetcherFunc(func(context.Context) (map[string]string, error) {
		return map[string]string{}, nil
	})}.Resolve(context.Background())
	assert.True(t, errors.Is(err, ErrNoIDMap))
}

func TestInvertIsDeterministic(t *testing.T) {
	forward := map[string]string{"KEY-A": "Q1", "KEY-C": "Q1", "KEY-B": "Q2"}
	for i := 0; i < 10; i++ {
		assert.Equal(t, map[string]string{"Q1": "KEY-C", "Q2": "KEY-B"}, Invert(forward))
	}
}

func TestRedisCacheReplacesContents(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Save(ctx, map[string]string{"Q1": "A", "Q2": "B"}))
	require.NoError(t, cache.Save(ctx, map[string]string{"Q3": "C"}))

	got, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Q3": "C"}, got)
}
