package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fleamarket/chat-service/internal/domain"
	"github.com/fleamarket/chat-service/internal/service"
	"github.com/fleamarket/chat-service/internal/storetest"
	httpx "github.com/fleamarket/chat-service/internal/transport/http"
	"github.com/fleamarket/chat-service/internal/transport/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *storetest.Store, *ws.Hub) {
	t.Helper()

	store := storetest.New()
	store.AddUser(domain.User{ID: "u-alice", Name: "alice", Email: "alice@mail.test"})
	store.AddUser(domain.User{ID: "u-bob", Name: "bob", Email: "bob@mail.test"})

	rooms := service.NewRoomService(store)
	unread := service.NewUnreadService(rooms, store, store)
	chat := service.NewChatService(rooms, unread, store, store, store)

	hub := ws.NewHub()
	wsSrv := ws.NewServer(hub, rooms, unread, chat, store)
	h := httpx.NewHandler(rooms, unread, chat, wsSrv)
	return httpx.NewRouter(h, wsSrv, nil), store, hub
}

func doJSON(t *testing.T, router http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer test-token")
		req.Header.Set("X-User-ID", userID)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAuthRequired(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/rooms/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Bearer без X-User-ID тоже недостаточен
	req := httptest.NewRequest(http.MethodGet, "/rooms/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOpenRoom(t *testing.T) {
	router, store, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/rooms/", "u-alice", httpx.OpenRoomRequest{CounterpartID: "u-bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody[httpx.RoomItem](t, rec)
	assert.NotEmpty(t, first.ID)
	assert.True(t, first.Joined)
	assert.Equal(t, 0, first.UnreadCount)

	// повторное открытие с другой стороны возвращает ту же комнату
	rec = doJSON(t, router, http.MethodPost, "/rooms/", "u-bob", httpx.OpenRoomRequest{CounterpartID: "u-alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[httpx.RoomItem](t, rec)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.RoomCount())
}

func TestOpenRoomValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/rooms/", "u-alice", httpx.OpenRoomRequest{CounterpartID: "u-alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/rooms/", "u-alice", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBacklogAndRead(t *testing.T) {
	router, store, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/rooms/", "u-alice", httpx.OpenRoomRequest{CounterpartID: "u-bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	room := decodeBody[httpx.RoomItem](t, rec)

	rooms := service.NewRoomService(store)
	unread := service.NewUnreadService(rooms, store, store)
	chat := service.NewChatService(rooms, unread, store, store, store)
	_, err := chat.Send(t.Context(), room.ID, "u-alice", "alice", "bob", "hello")
	require.NoError(t, err)

	rec = doJSON(t, router, http.MethodGet, "/rooms/"+room.ID+"/messages", "u-bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	backlog := decodeBody[httpx.BacklogResponse](t, rec)
	require.Len(t, backlog.Items, 1)
	assert.Equal(t, "hello", backlog.Items[0].Text)
	assert.Equal(t, "u-alice", backlog.Items[0].SenderID)

	rec = doJSON(t, router, http.MethodPost, "/rooms/"+room.ID+"/read", "u-bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/rooms/", "u-bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[httpx.RoomsListResponse](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 0, list.Items[0].UnreadCount)
	assert.Equal(t, "alice", list.Items[0].CounterpartName)
	assert.Equal(t, "hello", list.Items[0].LatestMessage)
}

func TestErrorMapping(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/rooms/", "u-alice", httpx.OpenRoomRequest{CounterpartID: "u-bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	room := decodeBody[httpx.RoomItem](t, rec)

	// посторонний получает forbidden, а не not found
	rec = doJSON(t, router, http.MethodGet, "/rooms/"+room.ID+"/messages", "u-carol", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/rooms/"+room.ID+"/leave", "u-carol", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/rooms/no-such-room/messages", "u-alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewingAndLeave(t *testing.T) {
	router, store, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/rooms/", "u-alice", httpx.OpenRoomRequest{CounterpartID: "u-bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	room := decodeBody[httpx.RoomItem](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/rooms/"+room.ID+"/viewing", "u-bob", httpx.ViewingRequest{Viewing: true})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/rooms/"+room.ID+"/leave", "u-alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	leave := decodeBody[httpx.LeaveRoomResponse](t, rec)
	assert.True(t, leave.Success)
	assert.False(t, leave.RoomDeleted)

	rec = doJSON(t, router, http.MethodPost, "/rooms/"+room.ID+"/leave", "u-bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	leave = decodeBody[httpx.LeaveRoomResponse](t, rec)
	assert.True(t, leave.RoomDeleted)
	assert.Equal(t, 0, store.RoomCount())

	// после удаления комнаты любые операции по её id — not found
	rec = doJSON(t, router, http.MethodGet, "/rooms/"+room.ID+"/messages", "u-alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type recordingConn struct {
	mu     sync.Mutex
	userID string
	sent   []ws.Message
}

func (c *recordingConn) Send(msg ws.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingConn) Close() error   { return nil }
func (c *recordingConn) UserID() string { return c.userID }

func (c *recordingConn) messages() []ws.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ws.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// Снос комнаты через HTTP-leave должен распускать группу сокет-подписчиков
// так же, как leave по сокету.
func TestLeaveRoomTearsDownGroup(t *testing.T) {
	router, _, hub := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/rooms/", "u-alice", httpx.OpenRoomRequest{CounterpartID: "u-bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	room := decodeBody[httpx.RoomItem](t, rec)

	sub := &recordingConn{userID: "u-bob"}
	hub.Add(room.ID, sub)

	rec = doJSON(t, router, http.MethodPost, "/rooms/"+room.ID+"/leave", "u-alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[httpx.LeaveRoomResponse](t, rec).RoomDeleted)
	// комната жива — подписка тоже
	assert.Equal(t, 1, hub.Count(room.ID))
	assert.Empty(t, sub.messages())

	rec = doJSON(t, router, http.MethodPost, "/rooms/"+room.ID+"/leave", "u-bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[httpx.LeaveRoomResponse](t, rec).RoomDeleted)

	assert.Equal(t, 0, hub.Count(room.ID))
	msgs := sub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, ws.TypeStatus, msgs[0].Type)
}

func TestHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
