package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fleamarket/chat-service/internal/domain"
)

const maxMessageLen = 4000

// ChatService — приём сообщений и сводки по комнатам.
type ChatService struct {
	rooms     *RoomService
	unread    *UnreadService
	store     RoomStore
	messages  MessageStore
	directory UserDirectory
}

func NewChatService(rooms *RoomService, unread *UnreadService, store RoomStore, messages MessageStore, directory UserDirectory) *ChatService {
	return &ChatService{
		rooms:     rooms,
		unread:    unread,
		store:     store,
		messages:  messages,
		directory: directory,
	}
}

// Send валидирует и сохраняет сообщение, затем обновляет счётчик
// непрочитанного получателя. Рассылка подписчикам — забота транспорта и
// происходит только после успешного сохранения. Сбой инкремента счётчика
// после сохранения не считается ошибкой отправки: сообщение уже в истории
// и должно быть разослано.
func (s *ChatService) Send(ctx context.Context, roomID, senderID, senderName, recipientName, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if len([]rune(text)) > maxMessageLen {
		return nil, domain.ErrMessageTooLong
	}

	room, err := s.rooms.Authorize(ctx, roomID, senderID)
	if err != nil {
		return nil, err
	}

	m := &domain.Message{
		RoomID:        roomID,
		SenderID:      senderID,
		SenderName:    senderName,
		RecipientName: recipientName,
		Text:          text,
	}
	if err := s.messages.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("messages.Save: %w", err)
	}

	if err := s.unread.MessageDelivered(ctx, room, senderID); err != nil {
		slog.Error("chat: unread bump failed", "room", roomID, "err", err)
	}
	return m, nil
}

// RoomSummary — строка списка диалогов: собеседник, непрочитанное, последнее
// сообщение.
type RoomSummary struct {
	RoomID           string
	CounterpartID    string
	CounterpartName  string
	CounterpartEmail string
	UnreadCount      int
	Joined           bool
	LatestMessage    string
	LatestMessageAt  time.Time
}

// RoomSummaries возвращает сводку по всем комнатам участника. Удалённый
// внешним процессом собеседник подменяется заглушкой Unknown.
func (s *ChatService) RoomSummaries(ctx context.Context, userID string) ([]RoomSummary, error) {
	rooms, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rooms.ListByUser: %w", err)
	}

	out := make([]RoomSummary, 0, len(rooms))
	for i := range rooms {
		room := &rooms[i]
		otherID := room.OtherID(userID)

		other, err := s.directory.GetByID(ctx, otherID)
		if err != nil {
			if !errors.Is(err, domain.ErrUserNotFound) {
				return nil, fmt.Errorf("directory.GetByID: %w", err)
			}
			u := domain.UnknownUser()
			other = &u
		}

		side := room.SideOf(userID)
		sum := RoomSummary{
			RoomID:           room.ID,
			CounterpartID:    other.ID,
			CounterpartName:  other.Name,
			CounterpartEmail: other.Email,
			UnreadCount:      side.UnreadCount,
			Joined:           side.Joined,
			LatestMessageAt:  room.CreatedAt,
		}
		latest, err := s.messages.Latest(ctx, room.ID)
		if err != nil {
			return nil, fmt.Errorf("messages.Latest: %w", err)
		}
		if latest != nil {
			sum.LatestMessage = latest.Text
			sum.LatestMessageAt = latest.SentAt
		}
		out = append(out, sum)
	}
	return out, nil
}
