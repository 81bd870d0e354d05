package http

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type OpenRoomRequest struct {
	CounterpartID string `json:"counterpart_id"`
}

// RoomItem — комната глазами вызывающего: unread/joined его стороны.
type RoomItem struct {
	ID            string    `json:"id"`
	InitiatorID   string    `json:"initiator_id"`
	CounterpartID string    `json:"counterpart_id"`
	CreatedAt     time.Time `json:"created_at"`
	Joined        bool      `json:"joined"`
	UnreadCount   int       `json:"unread_count"`
	Viewing       bool      `json:"viewing"`
}

type RoomSummaryItem struct {
	RoomID           string    `json:"room_id"`
	CounterpartID    string    `json:"counterpart_id"`
	CounterpartName  string    `json:"counterpart_name"`
	CounterpartEmail string    `json:"counterpart_email"`
	UnreadCount      int       `json:"unread_count"`
	Joined           bool      `json:"joined"`
	LatestMessage    string    `json:"latest_message,omitempty"`
	LatestMessageAt  time.Time `json:"latest_message_at"`
}

type RoomsListResponse struct {
	Items []RoomSummaryItem `json:"items"`
}

type MessageItem struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name"`
	RecipientName string    `json:"recipient_name"`
	Text          string    `json:"text"`
	SentAt        time.Time `json:"sent_at"`
}

type BacklogResponse struct {
	RoomID string        `json:"room_id"`
	Items  []MessageItem `json:"items"`
}

type ViewingRequest struct {
	Viewing bool `json:"viewing"`
}

type LeaveRoomResponse struct {
	Success     bool `json:"success"`
	RoomDeleted bool `json:"room_deleted"`
}
