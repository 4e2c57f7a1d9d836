package directory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mr1hm/go-emergency-dispatch/internal/config"
)

// Open builds the configured directory. The returned func releases any
// connection it holds.
//
// For the redis backend the seed file, when present, is written into Redis
// first so a fresh instance starts with the same institutions as the static
// backend.
func Open(ctx context.Context, cfg config.DirectoryConfig) (Directory, func() error, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}

		r := NewRedis(client, cfg.RedisPrefix)
		if cfg.SeedFile != "" {
			if err := seedRedis(ctx, r, cfg.SeedFile); err != nil {
				_ = client.Close()
				return nil, nil, err
			}
		}
		return r, client.Close, nil

	default:
		s, err := LoadStatic(cfg.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("directory loaded", "backend", "static", "institutions", s.Len())
		return s, func() error { return nil }, nil
	}
}

func seedRedis(ctx context.Context, r *Redis, path string) error {
	s, err := LoadStatic(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("no directory seed file, using Redis contents as-is", "path", path)
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range s.Entries() {
		if err := r.Store(ctx, e); err != nil {
			return err
		}
	}
	slog.Info("directory seeded", "backend", "redis", "institutions", s.Len())
	return nil
}
