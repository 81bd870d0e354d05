package domain

import "time"

// Room — один диалог между двумя участниками маркетплейса.
// Инициатор — тот, кто первым открыл диалог; по возможностям стороны симметричны.
type Room struct {
	ID            string    `db:"id"`
	InitiatorID   string    `db:"initiator_id"`
	CounterpartID string    `db:"counterpart_id"`
	CreatedAt     time.Time `db:"created_at"`

	Initiator   Side
	Counterpart Side
}

// Side — состояние одной стороны комнаты.
type Side struct {
	Joined      bool       `db:"joined"`
	LastJoinAt  *time.Time `db:"last_join_at"`
	UnreadCount int        `db:"unread_count"`
	Viewing     bool       `db:"viewing"`
}

func (r *Room) IsParticipant(userID string) bool {
	return userID == r.InitiatorID || userID == r.CounterpartID
}

func (r *Room) IsInitiator(userID string) bool {
	return userID == r.InitiatorID
}

// SideOf возвращает состояние стороны участника, nil для посторонних.
func (r *Room) SideOf(userID string) *Side {
	switch userID {
	case r.InitiatorID:
		return &r.Initiator
	case r.CounterpartID:
		return &r.Counterpart
	}
	return nil
}

// OtherID возвращает id второго участника комнаты.
func (r *Room) OtherID(userID string) string {
	if userID == r.InitiatorID {
		return r.CounterpartID
	}
	return r.InitiatorID
}
