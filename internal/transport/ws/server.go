package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fleamarket/chat-service/internal/domain"
	"github.com/fleamarket/chat-service/internal/service"

	"github.com/gorilla/websocket"
)

// Server обслуживает realtime-канал диалогов. Жизненный цикл соединения:
// CONNECTED (после апгрейда) -> SUBSCRIBED (после события join) -> CLOSED
// (после события leave либо обрыва).
type Server struct {
	upgrader  websocket.Upgrader
	hub       *Hub
	roomSvc   *service.RoomService
	unreadSvc *service.UnreadService
	chatSvc   *service.ChatService
	directory service.UserDirectory

	pingEvery time.Duration

	// Порядок доставки внутри комнаты совпадает с порядком sent_at только
	// если секция validate->persist->broadcast сериализована по комнате.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewServer(hub *Hub, rooms *service.RoomService, unread *service.UnreadService, chat *service.ChatService, directory service.UserDirectory) *Server {
	return &Server{
		hub:       hub,
		roomSvc:   rooms,
		unreadSvc: unread,
		chatSvc:   chat,
		directory: directory,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
		locks:     make(map[string]*sync.Mutex),
	}
}

// WS endpoint: GET /ws?access_token=...&user_id=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	accessToken := strings.TrimSpace(q.Get("access_token"))
	userID := strings.TrimSpace(q.Get("user_id"))
	if accessToken == "" || userID == "" {
		http.Error(w, "missing access_token or user_id", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, userID)

	go s.writeLoop(r.Context(), c)
	s.readLoop(r.Context(), c)

	// Обрыв без leave: соединение выбывает из группы и перестаёт считаться
	// «смотрящим», но joined не трогаем — выход остаётся явным действием.
	if roomID := c.Room(); roomID != "" {
		s.hub.Remove(roomID, c)
		if err := s.unreadSvc.SetViewing(r.Context(), roomID, c.userID, false); err != nil {
			slog.Debug("ws reset viewing on disconnect failed", "room", roomID, "user", c.userID, "err", err)
		}
	}

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "user", c.userID, "err", err)
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendError(c, "malformed event payload")
			continue
		}

		switch msg.Type {
		case TypeJoin:
			s.handleJoin(ctx, c, msg.Payload)
		case TypeMessage:
			s.handleMessage(ctx, c, msg.Payload)
		case TypeLeave:
			if s.handleLeave(ctx, c, msg.Payload) {
				return
			}
		default:
			// ignore
		}
	}
}

func (s *Server) handleJoin(ctx context.Context, c *wsConn, payload interface{}) {
	var p JoinPayload
	if decode(payload, &p) != nil || p.RoomID == "" || p.ParticipantName == "" {
		s.sendError(c, "malformed event payload")
		return
	}
	if c.Room() != "" {
		s.sendError(c, "already subscribed to a room")
		return
	}

	user, err := s.resolveParticipant(ctx, c, p.ParticipantName)
	if err != nil {
		s.sendServiceError(c, err)
		return
	}

	if err := s.roomSvc.Join(ctx, p.RoomID, user.ID); err != nil {
		s.sendServiceError(c, err)
		return
	}
	if err := s.unreadSvc.SetViewing(ctx, p.RoomID, user.ID, true); err != nil {
		s.sendServiceError(c, err)
		return
	}

	c.setRoom(p.RoomID)
	s.hub.Add(p.RoomID, c)
}

func (s *Server) handleMessage(ctx context.Context, c *wsConn, payload interface{}) {
	var p ChatPayload
	if decode(payload, &p) != nil || p.RoomID == "" {
		s.sendError(c, "malformed event payload")
		return
	}
	roomID := c.Room()
	if roomID == "" || roomID != p.RoomID {
		s.sendError(c, "not subscribed to this room")
		return
	}

	user, err := s.resolveParticipant(ctx, c, p.ParticipantName)
	if err != nil {
		s.sendServiceError(c, err)
		return
	}

	lock := s.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := s.chatSvc.Send(ctx, roomID, user.ID, user.Name, p.RecipientName, p.MessageText)
	if err != nil {
		s.sendServiceError(c, err)
		return
	}

	// Рассылка только после успешного сохранения, всем включая отправителя.
	s.hub.Broadcast(roomID, Message{
		Type: TypeMessage,
		Payload: MessageOut{
			SenderName:    msg.SenderName,
			Text:          msg.Text,
			RecipientName: msg.RecipientName,
			Timestamp:     msg.SentAt.Format(time.RFC3339Nano),
			RoomID:        msg.RoomID,
		},
	})
}

// handleLeave возвращает true, когда соединение завершило работу (CLOSED).
func (s *Server) handleLeave(ctx context.Context, c *wsConn, payload interface{}) bool {
	var p LeavePayload
	if decode(payload, &p) != nil || p.RoomID == "" {
		s.sendError(c, "malformed event payload")
		return false
	}
	roomID := c.Room()
	if roomID == "" || roomID != p.RoomID {
		s.sendError(c, "not subscribed to this room")
		return false
	}

	user, err := s.resolveParticipant(ctx, c, p.ParticipantName)
	if err != nil {
		s.sendServiceError(c, err)
		return false
	}

	deleted, err := s.roomSvc.Leave(ctx, roomID, user.ID)
	if err != nil {
		s.sendServiceError(c, err)
		return false
	}

	if deleted {
		s.teardownRoom(roomID, fmt.Sprintf("%s has left; the conversation is closed", user.Name))
	} else {
		s.hub.Remove(roomID, c)
		s.hub.Broadcast(roomID, Message{
			Type:    TypeStatus,
			Payload: StatusPayload{Message: fmt.Sprintf("%s has left the conversation", user.Name)},
		})
		if err := s.unreadSvc.SetViewing(ctx, roomID, user.ID, false); err != nil {
			slog.Debug("ws reset viewing on leave failed", "room", roomID, "user", user.ID, "err", err)
		}
	}

	c.setRoom("")
	_ = c.Send(Message{
		Type:    TypeLeaveResponse,
		Payload: LeaveResponsePayload{Success: true, Message: "left the conversation"},
	})
	return true
}

// NotifyRoomDeleted — сигнал о комнате, снесённой вне сокета (HTTP-leave).
// Группа распускается так же, как при leave по сокету.
func (s *Server) NotifyRoomDeleted(roomID string) {
	s.teardownRoom(roomID, "the conversation is closed")
}

// teardownRoom шлёт терминальный status и распускает группу удалённой комнаты.
// Уведомление уходит до сноса группы.
func (s *Server) teardownRoom(roomID, statusText string) {
	s.hub.Broadcast(roomID, Message{
		Type:    TypeStatus,
		Payload: StatusPayload{Message: statusText},
	})
	s.hub.CloseGroup(roomID)
	s.dropRoomLock(roomID)
}

// resolveParticipant находит участника по имени и сверяет с владельцем
// соединения — событие от чужого имени отклоняется.
func (s *Server) resolveParticipant(ctx context.Context, c *wsConn, name string) (*domain.User, error) {
	if name == "" {
		return nil, domain.ErrUserNotFound
	}
	user, err := s.directory.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if user.ID != c.userID {
		return nil, domain.ErrNotParticipant
	}
	return user, nil
}

func (s *Server) sendServiceError(c *wsConn, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		s.sendError(c, "room not found")
	case errors.Is(err, domain.ErrUserNotFound):
		s.sendError(c, "participant not found")
	case errors.Is(err, domain.ErrNotParticipant):
		s.sendError(c, "not a participant of the room")
	case errors.Is(err, domain.ErrEmptyMessage):
		s.sendError(c, "message text must not be empty")
	case errors.Is(err, domain.ErrMessageTooLong):
		s.sendError(c, "message text is too long")
	default:
		slog.Error("ws event failed", "user", c.userID, "err", err)
		s.sendError(c, "internal error")
	}
}

func (s *Server) sendError(c *wsConn, text string) {
	_ = c.Send(Message{Type: TypeError, Payload: ErrorPayload{Message: text}})
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

func (s *Server) roomLock(roomID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[roomID] = l
	}
	return l
}

func (s *Server) dropRoomLock(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, roomID)
}

// --- helpers ---

func decode(payload interface{}, dst interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(b, dst)
}

type wsConn struct {
	conn   *websocket.Conn
	userID string

	roomMu sync.Mutex
	roomID string

	sendMu chan struct{}
	closed chan struct{}
}

func newWsConn(c *websocket.Conn, userID string) *wsConn {
	return &wsConn{
		conn:   c,
		userID: userID,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) UserID() string { return c.userID }

func (c *wsConn) Room() string {
	c.roomMu.Lock()
	defer c.roomMu.Unlock()
	return c.roomID
}

func (c *wsConn) setRoom(id string) {
	c.roomMu.Lock()
	c.roomID = id
	c.roomMu.Unlock()
}
