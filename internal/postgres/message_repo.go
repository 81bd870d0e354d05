package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/fleamarket/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Save сохраняет сообщение; id и sent_at выставляет БД.
func (r *MessageRepository) Save(ctx context.Context, m *domain.Message) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO messages (room_id, sender_id, sender_name, recipient_name, text)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sent_at
	`, m.RoomID, m.SenderID, m.SenderName, m.RecipientName, m.Text)
	return row.Scan(&m.ID, &m.SentAt)
}

// BacklogSince возвращает сообщения комнаты по возрастанию sent_at.
// Граница снизу закрытая: сообщение с sent_at == since входит в выборку,
// чтобы не потерять отправленное в момент входа. since == nil — вся история.
func (r *MessageRepository) BacklogSince(ctx context.Context, roomID string, since *time.Time) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, room_id, sender_id, sender_name, recipient_name, text, sent_at
		FROM messages
		WHERE room_id = $1
		  AND ($2::timestamptz IS NULL OR sent_at >= $2)
		ORDER BY sent_at ASC, seq ASC
	`, roomID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.RecipientName, &m.Text, &m.SentAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Latest возвращает последнее сообщение комнаты, nil если сообщений нет.
func (r *MessageRepository) Latest(ctx context.Context, roomID string) (*domain.Message, error) {
	var m domain.Message
	err := r.db.QueryRow(ctx, `
		SELECT id, room_id, sender_id, sender_name, recipient_name, text, sent_at
		FROM messages
		WHERE room_id = $1
		ORDER BY sent_at DESC, seq DESC
		LIMIT 1
	`, roomID).Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.RecipientName, &m.Text, &m.SentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
