package postgres

import (
	"context"
	"errors"

	"github.com/fleamarket/chat-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository — каталог пользователей маркетплейса, только чтение.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, `SELECT id, name, email FROM users WHERE id=$1`, id)
}

func (r *UserRepository) GetByName(ctx context.Context, name string) (*domain.User, error) {
	return r.get(ctx, `SELECT id, name, email FROM users WHERE name=$1`, name)
}

func (r *UserRepository) get(ctx context.Context, query, arg string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Name, &u.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
