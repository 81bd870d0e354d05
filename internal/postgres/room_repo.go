package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleamarket/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = `
	id, initiator_id, counterpart_id, created_at,
	initiator_joined, initiator_last_join_at, initiator_unread_count, initiator_viewing,
	counterpart_joined, counterpart_last_join_at, counterpart_unread_count, counterpart_viewing`

func scanRoom(row pgx.Row) (*domain.Room, error) {
	var rm domain.Room
	err := row.Scan(
		&rm.ID, &rm.InitiatorID, &rm.CounterpartID, &rm.CreatedAt,
		&rm.Initiator.Joined, &rm.Initiator.LastJoinAt, &rm.Initiator.UnreadCount, &rm.Initiator.Viewing,
		&rm.Counterpart.Joined, &rm.Counterpart.LastJoinAt, &rm.Counterpart.UnreadCount, &rm.Counterpart.Viewing,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}
	return &rm, nil
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id=$1`
	return scanRoom(r.db.QueryRow(ctx, query, id))
}

// FindByPair ищет комнату по неупорядоченной паре участников.
func (r *RoomRepository) FindByPair(ctx context.Context, a, b string) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms
		WHERE (initiator_id=$1 AND counterpart_id=$2)
		   OR (initiator_id=$2 AND counterpart_id=$1)`
	return scanRoom(r.db.QueryRow(ctx, query, a, b))
}

// FindOrCreate атомарен для неупорядоченной пары: уникальный индекс по
// (least, greatest) + ON CONFLICT DO NOTHING исключают дубль комнаты при
// одновременном первом контакте с обеих сторон.
func (r *RoomRepository) FindOrCreate(ctx context.Context, requesterID, counterpartID string) (*domain.Room, bool, error) {
	room, err := r.FindByPair(ctx, requesterID, counterpartID)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, domain.ErrRoomNotFound) {
		return nil, false, err
	}

	query := `
		INSERT INTO rooms (initiator_id, counterpart_id, initiator_joined, counterpart_joined)
		VALUES ($1, $2, true, true)
		ON CONFLICT ((least(initiator_id, counterpart_id)), (greatest(initiator_id, counterpart_id)))
		DO NOTHING
		RETURNING ` + roomColumns
	room, err = scanRoom(r.db.QueryRow(ctx, query, requesterID, counterpartID))
	if err == nil {
		return room, true, nil
	}
	if !errors.Is(err, domain.ErrRoomNotFound) {
		return nil, false, err
	}

	// конфликт: комнату успела создать встречная сторона
	room, err = r.FindByPair(ctx, requesterID, counterpartID)
	if err != nil {
		return nil, false, err
	}
	return room, false, nil
}

// ListByUser возвращает комнаты, в которых состоит участник, свежие первыми.
func (r *RoomRepository) ListByUser(ctx context.Context, userID string) ([]domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms
		WHERE initiator_id=$1 OR counterpart_id=$1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, *rm)
	}
	return rooms, rows.Err()
}

func sidePrefix(asInitiator bool) string {
	if asInitiator {
		return "initiator"
	}
	return "counterpart"
}

// MarkJoined включает флаг joined и ставит водяной знак last_join_at = now().
// Часы только БД: sent_at сообщений сравнивается с этим же источником времени.
func (r *RoomRepository) MarkJoined(ctx context.Context, roomID string, asInitiator bool) error {
	p := sidePrefix(asInitiator)
	query := fmt.Sprintf(
		`UPDATE rooms SET %s_joined = true, %s_last_join_at = now() WHERE id=$1`, p, p)
	return r.execOnRoom(ctx, query, roomID)
}

func (r *RoomRepository) SetViewing(ctx context.Context, roomID string, asInitiator, viewing bool) error {
	query := fmt.Sprintf(
		`UPDATE rooms SET %s_viewing = $2 WHERE id=$1`, sidePrefix(asInitiator))
	return r.execOnRoom(ctx, query, roomID, viewing)
}

func (r *RoomRepository) ResetUnread(ctx context.Context, roomID string, asInitiator bool) error {
	query := fmt.Sprintf(
		`UPDATE rooms SET %s_unread_count = 0 WHERE id=$1`, sidePrefix(asInitiator))
	return r.execOnRoom(ctx, query, roomID)
}

func (r *RoomRepository) IncrementUnread(ctx context.Context, roomID string, asInitiator bool) error {
	p := sidePrefix(asInitiator)
	query := fmt.Sprintf(
		`UPDATE rooms SET %s_unread_count = %s_unread_count + 1 WHERE id=$1`, p, p)
	return r.execOnRoom(ctx, query, roomID)
}

// Leave снимает флаг joined стороны и, если обе стороны вышли, удаляет комнату
// (сообщения каскадом). Проверка и удаление выполняются в одной транзакции под
// блокировкой строки, чтобы встречный Leave не привёл к двойному удалению.
func (r *RoomRepository) Leave(ctx context.Context, roomID string, asInitiator bool) (deleted bool, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var initiatorJoined, counterpartJoined bool
	err = tx.QueryRow(ctx,
		`SELECT initiator_joined, counterpart_joined FROM rooms WHERE id=$1 FOR UPDATE`,
		roomID).Scan(&initiatorJoined, &counterpartJoined)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrRoomNotFound
		}
		return false, err
	}

	if asInitiator {
		initiatorJoined = false
	} else {
		counterpartJoined = false
	}

	if !initiatorJoined && !counterpartJoined {
		if _, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id=$1`, roomID); err != nil {
			return false, err
		}
		return true, tx.Commit(ctx)
	}

	query := fmt.Sprintf(`UPDATE rooms SET %s_joined = false WHERE id=$1`, sidePrefix(asInitiator))
	if _, err := tx.Exec(ctx, query, roomID); err != nil {
		return false, err
	}
	return false, tx.Commit(ctx)
}

func (r *RoomRepository) execOnRoom(ctx context.Context, query, roomID string, args ...any) error {
	ct, err := r.db.Exec(ctx, query, append([]any{roomID}, args...)...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}
