package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"notecard-review-service/internal/domain"
)

const usersKey = "review:users"

// ProgressStore keeps users and progress in Redis.
// Users are stored as:    HSET review:users {userID} <user json>
// Progress is stored as:  SET  review:progress:{userID} <state json>
type ProgressStore struct {
	client *redis.Client
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client}
}

func (s *ProgressStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	raw, err := s.client.HGetAll(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(raw))
	for id, payload := range raw {
		var u domain.User
		if err := json.Unmarshal([]byte(payload), &u); err != nil {
			// a corrupt entry still names a user
			u = domain.User{ID: id, Name: id}
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *ProgressStore) SaveUser(ctx context.Context, user domain.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, usersKey, user.ID, payload).Err()
}

// DeleteUser removes the user and its progress in one transaction.
func (s *ProgressStore) DeleteUser(ctx context.Context, userID string) error {
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, usersKey, userID)
	pipe.Del(ctx, progressKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	return nil
}

func (s *ProgressStore) LoadProgress(ctx context.Context, userID string) (domain.UserState, bool, error) {
	raw, err := s.client.Get(ctx, progressKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.UserState{}, false, nil
	}
	if err != nil {
		return domain.UserState{}, false, fmt.Errorf("load progress %s: %w", userID, err)
	}
	var state domain.UserState
	// UserState decoding never fails; corrupt payloads yield an empty state.
	_ = json.Unmarshal(raw, &state)
	return state, true, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, userID string, state domain.UserState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, progressKey(userID), payload, 0).Err()
}

func progressKey(userID string) string {
	return "review:progress:" + userID
}
