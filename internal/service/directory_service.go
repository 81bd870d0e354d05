package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fleamarket/chat-service/internal/cache"
	"github.com/fleamarket/chat-service/internal/domain"
)

// DirectoryService — сквозной read-through кеш над каталогом пользователей.
// Данные справочные и меняются редко, поэтому короткий TTL безопасен.
// При nil кеше работает напрямую с хранилищем.
type DirectoryService struct {
	users UserDirectory
	cache cache.Cache
	ttl   time.Duration
}

var _ UserDirectory = (*DirectoryService)(nil)

func NewDirectoryService(users UserDirectory, c cache.Cache, ttl time.Duration) *DirectoryService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DirectoryService{users: users, cache: c, ttl: ttl}
}

func (s *DirectoryService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.lookup(ctx, "chat:user:id:"+id, func() (*domain.User, error) {
		return s.users.GetByID(ctx, id)
	})
}

func (s *DirectoryService) GetByName(ctx context.Context, name string) (*domain.User, error) {
	return s.lookup(ctx, "chat:user:name:"+name, func() (*domain.User, error) {
		return s.users.GetByName(ctx, name)
	})
}

func (s *DirectoryService) lookup(ctx context.Context, key string, fetch func() (*domain.User, error)) (*domain.User, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var u domain.User
			if err := json.Unmarshal([]byte(raw), &u); err == nil {
				return &u, nil
			}
		} else if !errors.Is(err, cache.ErrMiss) {
			// кеш недоступен — идём в хранилище
			slog.Debug("directory cache get failed", "key", key, "err", err)
		}
	}

	u, err := fetch()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(u); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
				slog.Debug("directory cache set failed", "key", key, "err", err)
			}
		}
	}
	return u, nil
}
