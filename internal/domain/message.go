package domain

import "time"

// Message — одно сообщение диалога. Принадлежит комнате и удаляется вместе с ней.
// SentAt — единственный ключ сортировки; равные метки упорядочиваются по порядку вставки.
type Message struct {
	ID            string    `db:"id"`
	RoomID        string    `db:"room_id"`
	SenderID      string    `db:"sender_id"`
	SenderName    string    `db:"sender_name"`
	RecipientName string    `db:"recipient_name"`
	Text          string    `db:"text"`
	SentAt        time.Time `db:"sent_at"`
}
