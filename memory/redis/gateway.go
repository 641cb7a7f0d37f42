// Package redis implements core.MemoryGateway on Redis. Each student's
// facts live in a list keyed memory:{studentID}; RPUSH preserves
// insertion order and LRANGE reads the whole list back for client-side
// relevance ranking.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/memory"
)

// Options configure the Redis memory gateway.
type Options struct {
	Addr     string
	Password string
	DB       int
	// MaxFacts caps the per-student list; the oldest facts are trimmed
	// when the cap is exceeded. Zero means unbounded.
	MaxFacts int64
}

// Gateway is a Redis backed core.MemoryGateway.
type Gateway struct {
	client *redis.Client
	opts   Options
}

// NewGateway connects to Redis and verifies the connection.
func NewGateway(ctx context.Context, optFns ...func(o *Options)) (*Gateway, error) {
	opts := Options{Addr: "localhost:6379"}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Gateway{client: client, opts: opts}, nil
}

// NewGatewayFromClient wraps an existing client.
func NewGatewayFromClient(client *redis.Client, optFns ...func(o *Options)) *Gateway {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

// Close releases the underlying client.
func (g *Gateway) Close() error {
	return g.client.Close()
}

func factKey(studentID string) string {
	return "memory:" + studentID
}

// Remember implements core.MemoryGateway.
func (g *Gateway) Remember(ctx context.Context, studentID, fact string) error {
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return nil
	}
	key := factKey(studentID)
	pipe := g.client.TxPipeline()
	pipe.RPush(ctx, key, fact)
	if g.opts.MaxFacts > 0 {
		pipe.LTrim(ctx, key, -g.opts.MaxFacts, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remember %s: %w", studentID, err)
	}
	return nil
}

// Recall implements core.MemoryGateway: fetch the student's facts and
// rank them against the query client-side.
func (g *Gateway) Recall(ctx context.Context, studentID, query string, limit int) ([]core.Fact, error) {
	if limit <= 0 {
		return nil, nil
	}
	stored, err := g.client.LRange(ctx, factKey(studentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("recall %s: %w", studentID, err)
	}
	return memory.RankFacts(stored, query, limit), nil
}
