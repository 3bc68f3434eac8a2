package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/zhejian/url-shortener/qrform/internal/model"
)

// notFoundSentinel marks a cached miss so repeated lookups of unknown
// codes do not reach the database.
const notFoundSentinel = "__NOT_FOUND__"

// ResultRepositoryInterface is the storage contract the service depends on.
type ResultRepositoryInterface interface {
	Create(ctx context.Context, res *model.Result) error
	GetByCode(ctx context.Context, code string) (*model.Result, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*model.Result, error)
	Delete(ctx context.Context, code string) error
}

// CachedResultRepository puts a Redis cache in front of the database.
// A nil cache client disables caching.
type CachedResultRepository struct {
	db     ResultRepositoryInterface
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewCachedResultRepository wraps db with a cache
func NewCachedResultRepository(db ResultRepositoryInterface, cache *redis.Client, ttl time.Duration) *CachedResultRepository {
	return &CachedResultRepository{
		db:     db,
		cache:  cache,
		ttl:    ttl,
		logger: slog.Default(),
	}
}

func cacheKey(code string) string {
	return fmt.Sprintf("qr:%s", code)
}

// GetByCode with cache-aside pattern, negative caching and singleflight
// so concurrent misses for one code cause a single database query.
func (r *CachedResultRepository) GetByCode(ctx context.Context, code string) (*model.Result, error) {
	key := cacheKey(code)

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, key).Result()
		switch {
		case err == nil && cached == notFoundSentinel:
			return nil, ErrNotFound
		case err == nil:
			var res model.Result
			if jsonErr := json.Unmarshal([]byte(cached), &res); jsonErr == nil {
				return &res, nil
			}
			r.logger.WarnContext(ctx, "dropping undecodable cache entry", slog.String("key", key))
		case !errors.Is(err, redis.Nil):
			r.logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		res, err := r.db.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.store(ctx, key, notFoundSentinel)
			}
			return nil, err
		}
		r.storeResult(ctx, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Result), nil
}

// Create writes through to the cache, replacing any negative entry
func (r *CachedResultRepository) Create(ctx context.Context, res *model.Result) error {
	if err := r.db.Create(ctx, res); err != nil {
		return err
	}
	r.storeResult(ctx, res)
	return nil
}

// ListBySession is not cached; history changes on every submission
func (r *CachedResultRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*model.Result, error) {
	return r.db.ListBySession(ctx, sessionID, limit)
}

// Delete removes from the database and invalidates the cache entry
func (r *CachedResultRepository) Delete(ctx context.Context, code string) error {
	if err := r.db.Delete(ctx, code); err != nil {
		return err
	}
	if r.cache != nil {
		if err := r.cache.Del(ctx, cacheKey(code)).Err(); err != nil {
			r.logger.WarnContext(ctx, "cache invalidation failed", slog.String("code", code), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (r *CachedResultRepository) storeResult(ctx context.Context, res *model.Result) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	r.store(ctx, cacheKey(res.Code), data)
}

func (r *CachedResultRepository) store(ctx context.Context, key string, value interface{}) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, value, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

var _ ResultRepositoryInterface = (*CachedResultRepository)(nil)
var _ ResultRepositoryInterface = (*ResultRepository)(nil)
