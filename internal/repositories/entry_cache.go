package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sbilibin2017/romako-counter/internal/logger"
	"github.com/sbilibin2017/romako-counter/internal/models"
)

// Cache keys for the two list orderings.
const (
	EntriesByUpdatedKey = "entries:by_updated"
	EntriesByCountKey   = "entries:by_count"
)

// EntriesGenerationKey holds a counter bumped on every entry write. Cached lists
// are stored under keys carrying the generation they were loaded at.
const EntriesGenerationKey = "entries:gen"

// EntryListKey returns the cache key of the base ordering at generation gen.
func EntryListKey(base string, gen int64) string {
	return base + ":" + strconv.FormatInt(gen, 10)
}

// ErrCacheMiss is returned when a list is not cached.
var ErrCacheMiss = errors.New("cache miss")

// EntryListCacheRepository caches serialized entry lists in Redis
type EntryListCacheRepository struct {
	client *redis.Client
	exp    time.Duration // expiration duration for cached lists
}

// NewEntryListCacheRepository creates a new repository instance with the given TTL
func NewEntryListCacheRepository(client *redis.Client, expiration time.Duration) *EntryListCacheRepository {
	return &EntryListCacheRepository{
		client: client,
		exp:    expiration,
	}
}

// GetEntries fetches a cached list stored under key
func (r *EntryListCacheRepository) GetEntries(ctx context.Context, key string) ([]models.Entry, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		logger.Log.Debugw("cache get",
			"key", key,
			"error", err,
		)
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var entries []models.Entry
	if err := json.Unmarshal(val, &entries); err != nil {
		logger.Log.Warnw("corrupt cached entry list", "key", key, "error", err)
		return nil, ErrCacheMiss
	}

	logger.Log.Debugw("cache get",
		"key", key,
		"result", len(entries),
	)
	return entries, nil
}

// SetEntries caches a list under key with expiration
func (r *EntryListCacheRepository) SetEntries(ctx context.Context, key string, entries []models.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	err = r.client.Set(ctx, key, data, r.exp).Err()

	logger.Log.Debugw("cache set",
		"key", key,
		"entries", len(entries),
		"error", err,
	)
	return err
}

// Generation returns the current list generation, 0 before the first write
func (r *EntryListCacheRepository) Generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, EntriesGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	logger.Log.Debugw("cache generation",
		"key", EntriesGenerationKey,
		"result", gen,
		"error", err,
	)
	return gen, err
}

// Invalidate bumps the generation. Lists cached under older generations are
// never read again and expire on their own.
func (r *EntryListCacheRepository) Invalidate(ctx context.Context) error {
	gen, err := r.client.Incr(ctx, EntriesGenerationKey).Result()

	logger.Log.Debugw("cache invalidate",
		"key", EntriesGenerationKey,
		"result", gen,
		"error", err,
	)
	return err
}
