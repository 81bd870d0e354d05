package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fleamarket/chat-service/internal/domain"
	"github.com/fleamarket/chat-service/internal/service"
	httpmw "github.com/fleamarket/chat-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

// RoomDeletedNotifier получает сигнал о снесённой комнате, чтобы realtime-канал
// распустил её группу подписчиков.
type RoomDeletedNotifier interface {
	NotifyRoomDeleted(roomID string)
}

type Handler struct {
	roomSvc   *service.RoomService
	unreadSvc *service.UnreadService
	chatSvc   *service.ChatService
	notifier  RoomDeletedNotifier
}

func NewHandler(room *service.RoomService, unread *service.UnreadService, chat *service.ChatService, notifier RoomDeletedNotifier) *Handler {
	return &Handler{
		roomSvc:   room,
		unreadSvc: unread,
		chatSvc:   chat,
		notifier:  notifier,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeServiceError переводит доменные ошибки в HTTP-статусы.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
	case errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "user not found"})
	case errors.Is(err, domain.ErrNotParticipant):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not a participant of the room"})
	case errors.Is(err, domain.ErrSelfChat):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "cannot open a conversation with yourself"})
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrMessageTooLong):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		slog.Error("handler."+op+":", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func roomItemFor(room *domain.Room, userID string) RoomItem {
	side := room.SideOf(userID)
	return RoomItem{
		ID:            room.ID,
		InitiatorID:   room.InitiatorID,
		CounterpartID: room.CounterpartID,
		CreatedAt:     room.CreatedAt,
		Joined:        side.Joined,
		UnreadCount:   side.UnreadCount,
		Viewing:       side.Viewing,
	}
}

// POST /rooms — найти или создать комнату с собеседником.
func (h *Handler) OpenRoom(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())

	var req OpenRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CounterpartID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	room, err := h.roomSvc.FindOrCreate(r.Context(), userID, req.CounterpartID)
	if err != nil {
		writeServiceError(w, "OpenRoom", err)
		return
	}

	writeJSON(w, http.StatusOK, roomItemFor(room, userID))
}

// GET /rooms — список диалогов вызывающего со сводками.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	userID := httpmw.UserIDFromCtx(r.Context())

	sums, err := h.chatSvc.RoomSummaries(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "ListRooms", err)
		return
	}

	resp := RoomsListResponse{Items: make([]RoomSummaryItem, 0, len(sums))}
	for _, s := range sums {
		resp.Items = append(resp.Items, RoomSummaryItem{
			RoomID:           s.RoomID,
			CounterpartID:    s.CounterpartID,
			CounterpartName:  s.CounterpartName,
			CounterpartEmail: s.CounterpartEmail,
			UnreadCount:      s.UnreadCount,
			Joined:           s.Joined,
			LatestMessage:    s.LatestMessage,
			LatestMessageAt:  s.LatestMessageAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /rooms/{id}/messages — догоняющая выдача. Свежий вход сначала
// проставляет joined/водяной знак (no-op, если уже joined), затем отдаёт
// сообщения от водяного знака.
func (h *Handler) GetBacklog(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())

	if err := h.roomSvc.Join(r.Context(), roomID, userID); err != nil {
		writeServiceError(w, "GetBacklog", err)
		return
	}

	msgs, err := h.unreadSvc.Backlog(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, "GetBacklog", err)
		return
	}

	resp := BacklogResponse{RoomID: roomID, Items: make([]MessageItem, 0, len(msgs))}
	for _, m := range msgs {
		resp.Items = append(resp.Items, MessageItem{
			ID:            m.ID,
			RoomID:        m.RoomID,
			SenderID:      m.SenderID,
			SenderName:    m.SenderName,
			RecipientName: m.RecipientName,
			Text:          m.Text,
			SentAt:        m.SentAt,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// POST /rooms/{id}/read — обнулить счётчик непрочитанного вызывающего.
func (h *Handler) ResetUnread(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())

	if err := h.unreadSvc.ResetUnread(r.Context(), roomID, userID); err != nil {
		writeServiceError(w, "ResetUnread", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// POST /rooms/{id}/viewing — явная отметка «не смотрю диалог» (и обратно).
// Клиент обязан прислать её перед закрытием без leave.
func (h *Handler) SetViewing(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())

	var req ViewingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	if err := h.unreadSvc.SetViewing(r.Context(), roomID, userID, req.Viewing); err != nil {
		writeServiceError(w, "SetViewing", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// POST /rooms/{id}/leave — выйти из диалога.
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())

	deleted, err := h.roomSvc.Leave(r.Context(), roomID, userID)
	if err != nil {
		writeServiceError(w, "LeaveRoom", err)
		return
	}

	// Подписчики сокета узнают о сносе комнаты независимо от того, каким
	// путём ушла последняя сторона.
	if deleted && h.notifier != nil {
		h.notifier.NotifyRoomDeleted(roomID)
	}

	writeJSON(w, http.StatusOK, LeaveRoomResponse{Success: true, RoomDeleted: deleted})
}
