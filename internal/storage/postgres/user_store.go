package postgres

import (
	"context"
	"fmt"
	"time"

	"paidchat/internal/domain"
	"paidchat/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

var _ storage.UserStore = (*UserStore)(nil)

// Upsert creates the user or updates its username. created_at is kept.
func (s *UserStore) Upsert(ctx context.Context, u *domain.User) (err error) {
	if u == nil || u.ID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("upsert_user", start, err) }()

	createdAt := u.CreatedAt
	if createdAt == 0 {
		createdAt = nowMs()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, username, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
	`, u.ID, u.Username, createdAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user. Returns ErrNotFound if not exists.
func (s *UserStore) GetByID(ctx context.Context, id string) (_ *domain.User, err error) {
	start := time.Now()
	defer func() { observe("get_user", start, err) }()

	var u domain.User
	err = s.pool.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}
