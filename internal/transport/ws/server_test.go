package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fleamarket/chat-service/internal/domain"
	"github.com/fleamarket/chat-service/internal/service"
	"github.com/fleamarket/chat-service/internal/storetest"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEnv struct {
	store *storetest.Store
	rooms *service.RoomService
	hub   *Hub
	ts    *httptest.Server
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()

	store := storetest.New()
	store.AddUser(domain.User{ID: "u-alice", Name: "alice", Email: "alice@mail.test"})
	store.AddUser(domain.User{ID: "u-bob", Name: "bob", Email: "bob@mail.test"})

	rooms := service.NewRoomService(store)
	unread := service.NewUnreadService(rooms, store, store)
	chat := service.NewChatService(rooms, unread, store, store, store)

	hub := NewHub()
	srv := NewServer(hub, rooms, unread, chat, store)

	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	t.Cleanup(ts.Close)

	return &wsEnv{store: store, rooms: rooms, hub: hub, ts: ts}
}

func (e *wsEnv) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "?access_token=tok&user_id=" + userID
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) Message {
	t.Helper()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg Message
	require.NoError(t, c.ReadJSON(&msg))
	return msg
}

func payloadField(t *testing.T, msg Message, key string) string {
	t.Helper()

	m, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok, "payload is not an object: %#v", msg.Payload)
	s, _ := m[key].(string)
	return s
}

func TestHandleWSRejectsAnonymous(t *testing.T) {
	e := newWSEnv(t)

	resp, err := http.Get(e.ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSMessageRequiresSubscription(t *testing.T) {
	e := newWSEnv(t)
	room, err := e.rooms.FindOrCreate(context.Background(), "u-alice", "u-bob")
	require.NoError(t, err)

	alice := e.dial(t, "u-alice")
	require.NoError(t, alice.WriteJSON(Message{Type: TypeMessage, Payload: ChatPayload{
		RoomID: room.ID, ParticipantName: "alice", MessageText: "hi", RecipientName: "bob",
	}}))

	evt := readEvent(t, alice)
	assert.Equal(t, TypeError, evt.Type)
	assert.Equal(t, "not subscribed to this room", payloadField(t, evt, "message"))
	assert.Equal(t, 0, e.store.MessageCount(room.ID))
}

func TestWSJoinRejectsImpersonation(t *testing.T) {
	e := newWSEnv(t)
	room, err := e.rooms.FindOrCreate(context.Background(), "u-alice", "u-bob")
	require.NoError(t, err)

	alice := e.dial(t, "u-alice")
	// join от чужого имени с alice-соединения
	require.NoError(t, alice.WriteJSON(Message{Type: TypeJoin, Payload: JoinPayload{
		RoomID: room.ID, ParticipantName: "bob",
	}}))

	evt := readEvent(t, alice)
	assert.Equal(t, TypeError, evt.Type)
	assert.Equal(t, "not a participant of the room", payloadField(t, evt, "message"))
	assert.Equal(t, 0, e.hub.Count(room.ID))
}

func TestWSExchangeAndLeave(t *testing.T) {
	e := newWSEnv(t)
	ctx := context.Background()
	room, err := e.rooms.FindOrCreate(ctx, "u-alice", "u-bob")
	require.NoError(t, err)

	alice := e.dial(t, "u-alice")
	bob := e.dial(t, "u-bob")

	// alice подписывается; собственная рассылка подтверждает подписку
	require.NoError(t, alice.WriteJSON(Message{Type: TypeJoin, Payload: JoinPayload{
		RoomID: room.ID, ParticipantName: "alice",
	}}))
	require.NoError(t, alice.WriteJSON(Message{Type: TypeMessage, Payload: ChatPayload{
		RoomID: room.ID, ParticipantName: "alice", MessageText: "hello", RecipientName: "bob",
	}}))
	evt := readEvent(t, alice)
	require.Equal(t, TypeMessage, evt.Type)
	assert.Equal(t, "hello", payloadField(t, evt, "text"))
	assert.Equal(t, "alice", payloadField(t, evt, "sender_name"))

	// bob подписывается и отвечает; рассылку получают оба
	require.NoError(t, bob.WriteJSON(Message{Type: TypeJoin, Payload: JoinPayload{
		RoomID: room.ID, ParticipantName: "bob",
	}}))
	require.NoError(t, bob.WriteJSON(Message{Type: TypeMessage, Payload: ChatPayload{
		RoomID: room.ID, ParticipantName: "bob", MessageText: "hi there", RecipientName: "alice",
	}}))
	evt = readEvent(t, bob)
	require.Equal(t, TypeMessage, evt.Type)
	assert.Equal(t, "hi there", payloadField(t, evt, "text"))
	evt = readEvent(t, alice)
	require.Equal(t, TypeMessage, evt.Type)
	assert.Equal(t, "hi there", payloadField(t, evt, "text"))

	// bob выходит: ему — leave_response, alice — нетерминальный status
	require.NoError(t, bob.WriteJSON(Message{Type: TypeLeave, Payload: LeavePayload{
		RoomID: room.ID, ParticipantName: "bob",
	}}))
	evt = readEvent(t, bob)
	assert.Equal(t, TypeLeaveResponse, evt.Type)
	evt = readEvent(t, alice)
	assert.Equal(t, TypeStatus, evt.Type)
	assert.Contains(t, payloadField(t, evt, "message"), "bob has left")

	// комната живёт, пока внутри alice
	_, err = e.rooms.Authorize(ctx, room.ID, "u-alice")
	require.NoError(t, err)

	// alice выходит последней: терминальный status, затем leave_response
	require.NoError(t, alice.WriteJSON(Message{Type: TypeLeave, Payload: LeavePayload{
		RoomID: room.ID, ParticipantName: "alice",
	}}))
	evt = readEvent(t, alice)
	assert.Equal(t, TypeStatus, evt.Type)
	assert.Contains(t, payloadField(t, evt, "message"), "the conversation is closed")
	evt = readEvent(t, alice)
	assert.Equal(t, TypeLeaveResponse, evt.Type)

	assert.Equal(t, 0, e.hub.Count(room.ID))
	_, err = e.rooms.Authorize(ctx, room.ID, "u-alice")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}
