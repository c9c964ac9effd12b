package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agent2000/agent2000/pkg/adapters/file"
	"github.com/agent2000/agent2000/pkg/adapters/memory"
	"github.com/agent2000/agent2000/pkg/adapters/redis"
	"github.com/agent2000/agent2000/pkg/history"
	"github.com/agent2000/agent2000/pkg/history/middleware"
)

// HistoryStore builds the configured history backend, wrapped with redaction
// and encryption when enabled. The returned close func releases the backend.
func (c *Config) HistoryStore(ctx context.Context, logger *slog.Logger) (history.Store, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	closer := func() error { return nil }

	var base history.Store
	switch c.History.Backend {
	case BackendMemory:
		base = memory.NewStore()
	case BackendFile:
		base = file.New(c.History.Path, file.WithLogger(logger))
	case BackendRedis:
		opts := []redis.Option{redis.WithLogger(logger)}
		if c.History.TTL > 0 {
			opts = append(opts, redis.WithTTL(c.History.TTL))
		}
		rs := redis.New(c.Redis.Addr, c.Redis.Password, c.Redis.DB, opts...)
		if err := rs.Ping(ctx, 3); err != nil {
			_ = rs.Close()
			return nil, nil, fmt.Errorf("redis history store unavailable at %s: %w", c.Redis.Addr, err)
		}
		base = rs
		closer = rs.Close
	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", c.History.Backend)
	}

	// Redaction runs before encryption so masked values are what get sealed.
	var mws []middleware.Middleware
	if len(c.History.Redact) > 0 {
		mw, err := middleware.NewRedactMiddleware(c.History.Redact)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, mw)
	}
	if c.History.EncryptionKey != "" {
		active, err := middleware.ParseKey(c.History.EncryptionKey)
		if err != nil {
			return nil, nil, err
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for _, k := range c.History.FallbackKeys {
			key, err := middleware.ParseKey(k)
			if err != nil {
				return nil, nil, fmt.Errorf("fallback key: %w", err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(base, mws...), closer, nil
}
