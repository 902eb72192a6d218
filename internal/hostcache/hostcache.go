// Package hostcache caches Host daemon inventory in Redis so a newly
// elected or restarted controller can warm its placement view before
// every registered host has reconnected.
package hostcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hypercore/hc/internal/hostd"
)

// ErrNotFound is returned when a host has no cached inventory.
var ErrNotFound = errors.New("hostcache: not found")

const defaultTTL = 5 * time.Minute

// Cache stores ReportInventoryResponse snapshots keyed by host name.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// New creates a Cache backed by Redis.
func New(cfg Config) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{client: client, prefix: "hc:host:", ttl: defaultTTL}
}

func (c *Cache) key(host string) string {
	return c.prefix + host
}

// Put stores a host's inventory snapshot.
func (c *Cache) Put(ctx context.Context, host string, inv hostd.ReportInventoryResponse) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(host), data, c.ttl).Err()
}

// Get retrieves a host's last known inventory snapshot.
func (c *Cache) Get(ctx context.Context, host string) (hostd.ReportInventoryResponse, error) {
	var inv hostd.ReportInventoryResponse
	data, err := c.client.Get(ctx, c.key(host)).Bytes()
	if err == redis.Nil {
		return inv, ErrNotFound
	}
	if err != nil {
		return inv, err
	}
	if err := json.Unmarshal(data, &inv); err != nil {
		return inv, err
	}
	return inv, nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
