// Package memory stores per-user conversation state for the chatbot.
package memory

import (
	"context"
	"time"

	"github.com/neuralmind-ai/nsx-chatbot/common/errs"
	"github.com/neuralmind-ai/nsx-chatbot/config"
)

// New builds the store selected by cfg.Store.
func New(ctx context.Context, cfg config.SessionConfig) (Store, error) {
	switch cfg.Store {
	case "", "inmemory":
		return NewInMemoryStore(Options{
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       time.Duration(cfg.TTLSeconds) * time.Second,
		}), nil
	case "redis":
		return NewRedisStore(ctx, cfg)
	default:
		return nil, errs.Ef(errs.KindConfig, "session store", "unknown store %q", cfg.Store)
	}
}
