// Package storetest — потокобезопасное in-memory хранилище для тестов ядра
// чата. Повторяет контракты стораджа, включая атомарность FindOrCreate и
// Leave для пары участников.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fleamarket/chat-service/internal/domain"

	"github.com/google/uuid"
)

type Store struct {
	mu sync.Mutex

	// Now подменяется тестами для управляемых меток времени.
	Now func() time.Time

	rooms    map[string]*domain.Room
	messages map[string][]domain.Message
	users    map[string]domain.User // by id
}

func New() *Store {
	return &Store{
		Now:      time.Now,
		rooms:    make(map[string]*domain.Room),
		messages: make(map[string][]domain.Message),
		users:    make(map[string]domain.User),
	}
}

// --- RoomStore ---

func (s *Store) Get(_ context.Context, id string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (*domain.Room, error) {
	rm, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	cp := *rm
	return &cp, nil
}

func (s *Store) FindOrCreate(_ context.Context, requesterID, counterpartID string) (*domain.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rm := range s.rooms {
		if (rm.InitiatorID == requesterID && rm.CounterpartID == counterpartID) ||
			(rm.InitiatorID == counterpartID && rm.CounterpartID == requesterID) {
			cp := *rm
			return &cp, false, nil
		}
	}

	rm := &domain.Room{
		ID:            uuid.NewString(),
		InitiatorID:   requesterID,
		CounterpartID: counterpartID,
		CreatedAt:     s.Now(),
		Initiator:     domain.Side{Joined: true},
		Counterpart:   domain.Side{Joined: true},
	}
	s.rooms[rm.ID] = rm
	cp := *rm
	return &cp, true, nil
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Room
	for _, rm := range s.rooms {
		if rm.IsParticipant(userID) {
			out = append(out, *rm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkJoined(_ context.Context, roomID string, asInitiator bool) error {
	return s.mutateSide(roomID, asInitiator, func(side *domain.Side) {
		now := s.Now()
		side.Joined = true
		side.LastJoinAt = &now
	})
}

func (s *Store) SetViewing(_ context.Context, roomID string, asInitiator, viewing bool) error {
	return s.mutateSide(roomID, asInitiator, func(side *domain.Side) {
		side.Viewing = viewing
	})
}

func (s *Store) ResetUnread(_ context.Context, roomID string, asInitiator bool) error {
	return s.mutateSide(roomID, asInitiator, func(side *domain.Side) {
		side.UnreadCount = 0
	})
}

func (s *Store) IncrementUnread(_ context.Context, roomID string, asInitiator bool) error {
	return s.mutateSide(roomID, asInitiator, func(side *domain.Side) {
		side.UnreadCount++
	})
}

func (s *Store) Leave(_ context.Context, roomID string, asInitiator bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return false, domain.ErrRoomNotFound
	}
	if asInitiator {
		rm.Initiator.Joined = false
	} else {
		rm.Counterpart.Joined = false
	}
	if !rm.Initiator.Joined && !rm.Counterpart.Joined {
		delete(s.rooms, roomID)
		delete(s.messages, roomID)
		return true, nil
	}
	return false, nil
}

func (s *Store) mutateSide(roomID string, asInitiator bool, fn func(*domain.Side)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if asInitiator {
		fn(&rm.Initiator)
	} else {
		fn(&rm.Counterpart)
	}
	return nil
}

// RoomCount — количество живых комнат.
func (s *Store) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// MessageCount — количество сообщений комнаты (0 после удаления).
func (s *Store) MessageCount(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[roomID])
}

// --- MessageStore ---

func (s *Store) Save(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[m.RoomID]; !ok {
		return domain.ErrRoomNotFound
	}
	m.ID = uuid.NewString()
	m.SentAt = s.Now()
	s.messages[m.RoomID] = append(s.messages[m.RoomID], *m)
	return nil
}

func (s *Store) BacklogSince(_ context.Context, roomID string, since *time.Time) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Message
	for _, m := range s.messages[roomID] {
		if since == nil || !m.SentAt.Before(*since) {
			out = append(out, m)
		}
	}
	// порядок вставки сохраняется; сортировка по sent_at стабильная
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

func (s *Store) Latest(_ context.Context, roomID string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[roomID]
	if len(msgs) == 0 {
		return nil, nil
	}
	m := msgs[len(msgs)-1]
	return &m, nil
}

// --- UserDirectory ---

func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) GetByName(_ context.Context, name string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Name == name {
			cp := u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}
