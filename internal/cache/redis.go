package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"time-to-sell/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tts:price-history:"

// InitRedis connects to url, which may be a redis:// URL or a bare
// host:port address.
func InitRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := parseOptions(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func parseOptions(url string) (*redis.Options, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("redis url is empty")
	}
	if strings.Contains(url, "://") {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: url}, nil
}

// PriceHistoryCache stores raw price-history responses keyed by target for a
// short TTL. It is a transport cache only; the series store stays the source
// of truth for rendering.
type PriceHistoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPriceHistoryCache(client *redis.Client, ttl time.Duration) *PriceHistoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PriceHistoryCache{client: client, ttl: ttl}
}

// Get returns the cached points and true on a hit. Misses and decode failures
// both report false; decode failures also return the error.
func (c *PriceHistoryCache) Get(ctx context.Context, target domain.IndexType) ([]domain.PricePoint, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, key(target)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", target, err)
	}
	var points []domain.PricePoint
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil, false, fmt.Errorf("decode cached price history %s: %w", target, err)
	}
	return points, true, nil
}

func (c *PriceHistoryCache) Set(ctx context.Context, target domain.IndexType, points []domain.PricePoint) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encode price history %s: %w", target, err)
	}
	if err := c.client.Set(ctx, key(target), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", target, err)
	}
	return nil
}

func (c *PriceHistoryCache) Invalidate(ctx context.Context, target domain.IndexType) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, key(target)).Err()
}

func key(target domain.IndexType) string {
	return keyPrefix + target.HistorySlug()
}
