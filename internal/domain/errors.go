package domain

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrNotParticipant = errors.New("user is not a participant of the room")
	ErrSelfChat       = errors.New("conversation with yourself is not allowed")
	ErrEmptyMessage   = errors.New("empty message text")
	ErrMessageTooLong = errors.New("message too long")
)
