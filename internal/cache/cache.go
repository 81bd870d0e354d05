package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss — типизированный промах кеша, чтобы вызывающие отличали его от
// транспортных ошибок.
var ErrMiss = errors.New("cache: miss")

// Cache — минимальный контракт key-value кеша. Реализации потокобезопасны.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}
