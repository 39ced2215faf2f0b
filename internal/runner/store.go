package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pyresume/dashclient/internal/config"
	"github.com/pyresume/dashclient/internal/credential"
	redisclient "github.com/pyresume/dashclient/internal/redis"
)

// OpenStore returns the credential store selected by cfg.Store.Backend and
// a close function releasing whatever it holds.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (credential.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case config.StoreMemory:
		return credential.NewMemoryStore(), noop, nil

	case config.StoreFile:
		path := cfg.Store.Path
		if path == "" {
			var err error
			if path, err = credential.DefaultFilePath(); err != nil {
				return nil, nil, err
			}
		}
		return credential.NewFileStore(path, logger), noop, nil

	case config.StoreRedis:
		client := redisclient.NewClient(redisclient.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.Timeout)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return credential.NewRedisStore(credential.RedisStoreConfig{
			Cmd:       client.RDB,
			SessionID: cfg.Store.SessionID,
			TTL:       cfg.Store.TTL,
			Logger:    logger,
		}), client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
