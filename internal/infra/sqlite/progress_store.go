// Package sqlite stores users and review progress in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"notecard-review-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS users_name_nocase ON users (name COLLATE NOCASE);
CREATE TABLE IF NOT EXISTS user_states (
	user_id    TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);`

type userRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// ProgressStore is an app.ProgressStore on SQLite.
type ProgressStore struct {
	db *sqlx.DB
}

// Open connects to the database at path and creates the schema. The path
// ":memory:" keeps everything in process.
func Open(path string) (*ProgressStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	// SQLite has a single writer; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &ProgressStore{db: db}, nil
}

func (s *ProgressStore) Close() error {
	return s.db.Close()
}

func (s *ProgressStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, created_at FROM users ORDER BY name COLLATE NOCASE`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, domain.User{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt.UTC()})
	}
	return users, nil
}

func (s *ProgressStore) SaveUser(ctx context.Context, user domain.User) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, name, created_at) VALUES (:id, :name, :created_at)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		userRow{ID: user.ID, Name: user.Name, CreatedAt: user.CreatedAt.UTC()})
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *ProgressStore) DeleteUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *ProgressStore) LoadProgress(ctx context.Context, userID string) (domain.UserState, bool, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `SELECT state FROM user_states WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserState{}, false, nil
	}
	if err != nil {
		return domain.UserState{}, false, fmt.Errorf("load progress: %w", err)
	}
	var state domain.UserState
	_ = json.Unmarshal([]byte(raw), &state)
	return state, true, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, userID string, state domain.UserState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_states (user_id, state, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP`,
		userID, string(raw))
	if err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}
