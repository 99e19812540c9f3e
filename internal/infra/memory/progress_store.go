package memory

import (
	"context"
	"sync"

	"notecard-review-service/internal/domain"
)

// ProgressStore is an in-memory implementation of app.ProgressStore.
// States are cloned on the way in and out.
type ProgressStore struct {
	mu     sync.RWMutex
	users  map[string]domain.User
	states map[string]domain.UserState
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		users:  make(map[string]domain.User),
		states: make(map[string]domain.UserState),
	}
}

func (s *ProgressStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *ProgressStore) SaveUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *ProgressStore) DeleteUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	delete(s.states, userID)
	return nil
}

func (s *ProgressStore) LoadProgress(_ context.Context, userID string) (domain.UserState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[userID]
	if !ok {
		return domain.UserState{}, false, nil
	}
	return state.Clone(), true, nil
}

func (s *ProgressStore) SaveProgress(_ context.Context, userID string, state domain.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = state.Clone()
	return nil
}
