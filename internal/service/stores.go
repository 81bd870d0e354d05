package service

import (
	"context"
	"time"

	"github.com/fleamarket/chat-service/internal/domain"
)

// RoomStore — контракт хранилища комнат. Хранилище — единственный источник
// истины; конфликтующие обновления оно сериализует само (см. Leave, FindOrCreate).
type RoomStore interface {
	Get(ctx context.Context, id string) (*domain.Room, error)
	// FindOrCreate атомарен для неупорядоченной пары участников:
	// повторный вызов (в любом порядке аргументов) возвращает ту же комнату.
	FindOrCreate(ctx context.Context, requesterID, counterpartID string) (room *domain.Room, created bool, err error)
	ListByUser(ctx context.Context, userID string) ([]domain.Room, error)
	MarkJoined(ctx context.Context, roomID string, asInitiator bool) error
	SetViewing(ctx context.Context, roomID string, asInitiator, viewing bool) error
	ResetUnread(ctx context.Context, roomID string, asInitiator bool) error
	IncrementUnread(ctx context.Context, roomID string, asInitiator bool) error
	// Leave сообщает, была ли комната удалена (обе стороны вышли).
	Leave(ctx context.Context, roomID string, asInitiator bool) (deleted bool, err error)
}

type MessageStore interface {
	Save(ctx context.Context, m *domain.Message) error
	BacklogSince(ctx context.Context, roomID string, since *time.Time) ([]domain.Message, error)
	Latest(ctx context.Context, roomID string) (*domain.Message, error)
}

// UserDirectory — справочник участников (внешний для ядра чата).
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByName(ctx context.Context, name string) (*domain.User, error)
}
