package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"notecard-review-service/internal/domain"
)

// ProgressStore keeps users in review_users and each user's state as JSONB
// in review_progress.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM review_users ORDER BY lower(name)`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *ProgressStore) SaveUser(ctx context.Context, user domain.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO review_users (id, name, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		user.ID, user.Name, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// DeleteUser removes the user; its progress row goes with it via ON DELETE CASCADE.
func (s *ProgressStore) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM review_users WHERE id=$1`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *ProgressStore) LoadProgress(ctx context.Context, userID string) (domain.UserState, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM review_progress WHERE user_id=$1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserState{}, false, nil
	}
	if err != nil {
		return domain.UserState{}, false, fmt.Errorf("load progress: %w", err)
	}
	var state domain.UserState
	_ = json.Unmarshal(raw, &state)
	return state, true, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, userID string, state domain.UserState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO review_progress (user_id, state, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		userID, string(raw))
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
