// Package natskv implements the fused-result cache on a NATS JetStream
// Key-Value bucket.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
	"github.com/vkorchagin/agent-selector/internal/infrastructure/resilience"
)

// bucket is the slice of nats.KeyValue this cache uses; narrowed for tests.
type bucket interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
}

// Cache stores fused candidate lists as JSON values. Entry expiry is
// governed by the bucket TTL set at creation; the per-call TTL argument is
// accepted for interface compatibility and checked against it.
type Cache struct {
	conn      *nats.Conn
	kv        bucket
	bucketTTL time.Duration
	executor  *resilience.Executor
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

func New(url, bucketName string, ttl time.Duration, options Options) (*Cache, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name("agent-selector"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	kv, err := js.KeyValue(bucketName)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: bucketName,
			TTL:    ttl,
		})
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open kv bucket %s: %w", bucketName, err)
	}

	return &Cache{
		conn:      conn,
		kv:        kv,
		bucketTTL: ttl,
		executor:  resilience.NewExecutor(resilience.DefaultConfig(), classifyNATSError),
	}, nil
}

func (c *Cache) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Cache) Get(ctx context.Context, key string) ([]domain.FusedCandidate, bool, error) {
	var raw []byte
	err := c.executor.Run(ctx, "cache.get", func(context.Context) error {
		entry, err := c.kv.Get(key)
		if err != nil {
			return err
		}
		raw = entry.Value()
		return nil
	})
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var candidates []domain.FusedCandidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		// A malformed entry is a miss, not a failure: recompute overwrites it.
		return nil, false, nil
	}
	return candidates, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, candidates []domain.FusedCandidate, ttl time.Duration) error {
	if ttl > 0 && ttl != c.bucketTTL {
		slog.Debug("cache_ttl_mismatch", "requested", ttl, "bucket", c.bucketTTL)
	}

	raw, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	err = c.executor.Run(ctx, "cache.set", func(context.Context) error {
		_, err := c.kv.Put(key, raw)
		return err
	})
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, nats.ErrKeyNotFound) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrNoResponders) || errors.Is(err, nats.ErrTimeout) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
