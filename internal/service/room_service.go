package service

import (
	"context"
	"fmt"

	"github.com/fleamarket/chat-service/internal/domain"
)

// RoomService — поиск/создание комнат и их жизненный цикл.
type RoomService struct {
	rooms RoomStore
}

func NewRoomService(rooms RoomStore) *RoomService {
	return &RoomService{rooms: rooms}
}

// FindOrCreate возвращает комнату пары участников, создавая её при первом
// контакте. Идемпотентен и симметричен: FindOrCreate(A,B) == FindOrCreate(B,A).
func (s *RoomService) FindOrCreate(ctx context.Context, requesterID, counterpartID string) (*domain.Room, error) {
	if requesterID == "" || counterpartID == "" {
		return nil, domain.ErrUserNotFound
	}
	if requesterID == counterpartID {
		return nil, domain.ErrSelfChat
	}
	room, _, err := s.rooms.FindOrCreate(ctx, requesterID, counterpartID)
	if err != nil {
		return nil, fmt.Errorf("rooms.FindOrCreate: %w", err)
	}
	return room, nil
}

// Authorize загружает комнату и проверяет членство вызывающего. Любая
// операция, адресующая комнату по id, начинается с этой проверки: посторонний
// получает ErrNotParticipant, а не данные комнаты.
func (s *RoomService) Authorize(ctx context.Context, roomID, userID string) (*domain.Room, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	return room, nil
}

// Join включает флаг joined и ставит водяной знак last_join_at. Вызывается
// ровно один раз на свежий вход в диалог: если участник уже joined — no-op,
// водяной знак не сдвигается.
func (s *RoomService) Join(ctx context.Context, roomID, userID string) error {
	room, err := s.Authorize(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if room.SideOf(userID).Joined {
		return nil
	}
	return s.rooms.MarkJoined(ctx, roomID, room.IsInitiator(userID))
}

// Leave снимает флаг joined; когда обе стороны вышли, комната и её сообщения
// удаляются — это единственный механизм сборки мусора. Возвращает признак
// удаления, чтобы транспорт успел уведомить подписчиков до сноса группы.
func (s *RoomService) Leave(ctx context.Context, roomID, userID string) (roomDeleted bool, err error) {
	room, err := s.Authorize(ctx, roomID, userID)
	if err != nil {
		return false, err
	}
	return s.rooms.Leave(ctx, roomID, room.IsInitiator(userID))
}
