package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	categoriesKey = "shoppinglist:categories"
	totalCostKey  = "shoppinglist:total-cost"
	generationKey = "shoppinglist:generation"
)

// CacheService caches the list-wide aggregates. Values are stored per
// generation: a reader takes the generation before querying the store and
// reads and writes only that generation's keys, and every write to the list
// bumps the generation. A value computed before a write can therefore never
// be served after it. Getters return a nil value and a nil error on a miss.
type CacheService interface {
	Generation(ctx context.Context) (int64, error)
	GetCategories(ctx context.Context, gen int64) ([]string, error)
	SetCategories(ctx context.Context, gen int64, categories []string, ttl time.Duration) error
	GetTotalCost(ctx context.Context, gen int64) (*decimal.Decimal, error)
	SetTotalCost(ctx context.Context, gen int64, total decimal.Decimal, ttl time.Duration) error
	InvalidateAggregates(ctx context.Context) error
	Ping(ctx context.Context) error
	Enabled() bool
}

func generationScoped(key string, gen int64) string {
	return fmt.Sprintf("%s:%d", key, gen)
}

type redisCacheService struct {
	client *redis.Client
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	} else {
		log.Printf("Redis connection established (%s)", parsedAddr)
	}

	return &redisCacheService{client: client}
}

// NewRedisCacheServiceFromClient wraps an existing client.
func NewRedisCacheServiceFromClient(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

// Generation returns the current aggregate generation, 0 before the first write.
func (r *redisCacheService) Generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *redisCacheService) GetCategories(ctx context.Context, gen int64) ([]string, error) {
	data, err := r.client.Get(ctx, generationScoped(categoriesKey, gen)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	categories := []string{}
	if err := json.Unmarshal(data, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *redisCacheService) SetCategories(ctx context.Context, gen int64, categories []string, ttl time.Duration) error {
	data, err := json.Marshal(categories)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, generationScoped(categoriesKey, gen), string(data), ttl).Err()
}

func (r *redisCacheService) GetTotalCost(ctx context.Context, gen int64) (*decimal.Decimal, error) {
	val, err := r.client.Get(ctx, generationScoped(totalCostKey, gen)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	total, err := decimal.NewFromString(val)
	if err != nil {
		return nil, err
	}
	return &total, nil
}

func (r *redisCacheService) SetTotalCost(ctx context.Context, gen int64, total decimal.Decimal, ttl time.Duration) error {
	return r.client.Set(ctx, generationScoped(totalCostKey, gen), total.String(), ttl).Err()
}

// InvalidateAggregates moves readers to a fresh generation. Keys of older
// generations expire on their TTL.
func (r *redisCacheService) InvalidateAggregates(ctx context.Context) error {
	return r.client.Incr(ctx, generationKey).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Enabled() bool { return true }

// noopCacheService is used when no Redis address is configured.
type noopCacheService struct{}

func NewNoopCacheService() CacheService {
	return noopCacheService{}
}

func (noopCacheService) Generation(context.Context) (int64, error) { return 0, nil }

func (noopCacheService) GetCategories(context.Context, int64) ([]string, error) { return nil, nil }

func (noopCacheService) SetCategories(context.Context, int64, []string, time.Duration) error {
	return nil
}

func (noopCacheService) GetTotalCost(context.Context, int64) (*decimal.Decimal, error) {
	return nil, nil
}

func (noopCacheService) SetTotalCost(context.Context, int64, decimal.Decimal, time.Duration) error {
	return nil
}

func (noopCacheService) InvalidateAggregates(context.Context) error { return nil }

func (noopCacheService) Ping(context.Context) error { return nil }

func (noopCacheService) Enabled() bool { return false }
