package queue

import (
	"context"
	"fmt"

	"github.com/XProfessional1130/Getravio-Image-Processing/internal/config"
)

// New creates the Queue implementation selected by cfg.Driver.
func New(ctx context.Context, cfg *config.QueueConfig) (Queue, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedisQueue(ctx, &RedisConfig{
			Addr:              cfg.RedisAddr,
			Password:          cfg.RedisPass,
			DB:                cfg.RedisDB,
			Key:               cfg.Key,
			VisibilityTimeout: cfg.VisibilityTimeout,
		})
	case "memory", "":
		return NewMemoryQueue(cfg.BufferSize), nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}
