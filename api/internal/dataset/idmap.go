package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoIDMap indicates no configured source produced an identifier map.
var ErrNoIDMap = errors.New("dataset: no identifier map available")

// IDMapFetcher retrieves the chemical key to identifier table from the
// knowledge base.
type IDMapFetcher interface {
	InChIKeyMap(ctx context.Context) (map[string]string, error)
}

// IDMapCache stores the reverse map between restarts.
type IDMapCache interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, reverse map[string]string) error
}

// IDMapResolver builds the identifier to chemical key map from a local file,
// the cache or the knowledge base, in that order.
type IDMapResolver struct {
	Source  Source
	File    string
	Cache   IDMapCache
	Fetcher IDMapFetcher
	Logger  *slog.Logger
}

// Resolve returns the map from identifier (qid) to chemical key.
func (r IDMapResolver) Resolve(ctx context.Context) (map[string]string, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}

	if r.File != "" && r.Source != nil {
		reverse, err := r.loadFile(ctx)
		if err == nil && len(reverse) > 0 {
			log.Info("identifier map loaded", "source", "file", "entries", len(reverse))
			return reverse, nil
		}
		log.Warn("identifier map file unusable", "file", r.File, "error", err)
	}

	if r.Cache != nil {
		reverse, err := r.Cache.Load(ctx)
		if err != nil {
			log.Warn("identifier map cache read failed", "error", err)
		} else if len(reverse) > 0 {
			log.Info("identifier map loaded", "source", "cache", "entries", len(reverse))
			return reverse, nil
		}
	}

	if r.Fetcher == nil {
		return nil, ErrNoIDMap
	}
	forward, err := r.Fetcher.InChIKeyMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoIDMap, err)
	}
	reverse := Invert(forward)
	if len(reverse) == 0 {
		return nil, ErrNoIDMap
	}
	if r.Cache != nil {
		if err := r.Cache.Save(ctx, reverse); err != nil {
			log.Warn("identifier map cache write failed", "error", err)
		}
	}
	log.Info("identifier map loaded", "source", "knowledge_base", "entries", len(reverse))
	return reverse, nil
}

func (r IDMapResolver) loadFile(ctx context.Context) (map[string]string, error) {
	rc, err := r.Source.Open(ctx, r.File)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	table, err := ReadTable(rc, "inchi_key", "qid")
	if err != nil {
		return nil, err
	}
	reverse := make(map[string]string, table.Len())
	for i := 0; i < table.Len(); i++ {
		row := table.Row(i)
		ikey, okKey := row.Value("inchi_key")
		qid, okQID := row.Value("qid")
		if okKey && okQID {
			reverse[qid] = ikey
		}
	}
	return reverse, nil
}

// Invert turns a chemical key to identifier map around. When several keys
// point at one identifier the lexically greatest key wins, so the result does
// not depend on map iteration order.
func Invert(forward map[string]string) map[string]string {
	keys := make([]string, 0, len(forward))
	for k := range forward {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	reverse := make(map[string]string, len(forward))
	for _, k := range keys {
		reverse[forward[k]] = k
	}
	return reverse
}

// RedisIDMapCache keeps the reverse map in a Redis hash.
type RedisIDMapCache struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisIDMapCache constructs a cache under a fixed hash key.
func NewRedisIDMapCache(client redis.Cmdable, ttl time.Duration) *RedisIDMapCache {
	return &RedisIDMapCache{client: client, key: "reframe:idmap:qid", ttl: ttl}
}

// Load returns the cached map; an empty map means a miss.
func (c *RedisIDMapCache) Load(ctx context.Context) (map[string]string, error) {
	values, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read id map cache: %w", err)
	}
	return values, nil
}

// Save replaces the cached map atomically and sets its expiry.
func (c *RedisIDMapCache) Save(ctx context.Context, reverse map[string]string) error {
	fields := make(map[string]interface{}, len(reverse))
	for qid, ikey := range reverse {
		fields[qid] = ikey
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, c.key)
	pipe.HSet(ctx, c.key, fields)
	if c.ttl > 0 {
		pipe.Expire(ctx, c.key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write id map cache: %w", err)
	}
	return nil
}
