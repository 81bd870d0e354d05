package service

import (
	"context"
	"fmt"

	"github.com/fleamarket/chat-service/internal/domain"
)

// UnreadService — подсчёт непрочитанного и догоняющая выдача сообщений.
// Вместо по-сообщенческого состояния прочтения — один водяной знак
// last_join_at на сторону комнаты.
type UnreadService struct {
	rooms    *RoomService
	store    RoomStore
	messages MessageStore
}

func NewUnreadService(rooms *RoomService, store RoomStore, messages MessageStore) *UnreadService {
	return &UnreadService{rooms: rooms, store: store, messages: messages}
}

// Backlog возвращает сообщения, которых зритель ещё не видел: всё при пустом
// водяном знаке, иначе sent_at >= last_join_at (граница закрытая — сообщение,
// отправленное в момент входа, не теряется).
func (s *UnreadService) Backlog(ctx context.Context, roomID, viewerID string) ([]domain.Message, error) {
	room, err := s.rooms.Authorize(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}
	return s.messages.BacklogSince(ctx, roomID, room.SideOf(viewerID).LastJoinAt)
}

// ResetUnread обнуляет счётчик стороны. Вызывается при каждом возврате фокуса
// в диалог, в отличие от Join — тот срабатывает раз на цикл отсутствия.
func (s *UnreadService) ResetUnread(ctx context.Context, roomID, userID string) error {
	room, err := s.rooms.Authorize(ctx, roomID, userID)
	if err != nil {
		return err
	}
	return s.store.ResetUnread(ctx, roomID, room.IsInitiator(userID))
}

// SetViewing переключает флаг «сейчас в диалоге»; по нему решается, растить ли
// счётчик непрочитанного при доставке сообщения.
func (s *UnreadService) SetViewing(ctx context.Context, roomID, userID string, viewing bool) error {
	room, err := s.rooms.Authorize(ctx, roomID, userID)
	if err != nil {
		return err
	}
	return s.store.SetViewing(ctx, roomID, room.IsInitiator(userID), viewing)
}

// MessageDelivered инкрементирует счётчик стороны-получателя, если та сейчас
// не смотрит диалог. Сторона отправителя не инкрементируется никогда.
func (s *UnreadService) MessageDelivered(ctx context.Context, room *domain.Room, senderID string) error {
	otherID := room.OtherID(senderID)
	if room.SideOf(otherID).Viewing {
		return nil
	}
	if err := s.store.IncrementUnread(ctx, room.ID, room.IsInitiator(otherID)); err != nil {
		return fmt.Errorf("rooms.IncrementUnread: %w", err)
	}
	return nil
}
