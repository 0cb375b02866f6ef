package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Advisory wraps a Store so backend failures never reach a stage: a
// failed Get is a miss, a failed Set is dropped. Failures are logged at
// warn so an unhealthy backend is still visible.
type Advisory struct {
	inner  Store
	logger *zap.Logger
}

func NewAdvisory(inner Store, logger *zap.Logger) *Advisory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisory{inner: inner, logger: logger}
}

func (a *Advisory) Get(ctx context.Context, key string) ([]byte, error) {
	if a.inner == nil {
		return nil, nil
	}
	payload, err := a.inner.Get(ctx, key)
	if err != nil {
		a.logger.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return payload, nil
}

func (a *Advisory) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if a.inner == nil {
		return nil
	}
	if err := a.inner.Set(ctx, key, payload, ttl); err != nil {
		a.logger.Warn("cache set failed, dropping entry", zap.String("key", key), zap.Error(err))
	}
	return nil
}
