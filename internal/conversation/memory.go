package conversation

import (
	"context"
	"maps"
	"sync"
	"time"

	"referral-bot/models"
)

// MemoryStore keeps dialogs in process memory
type MemoryStore struct {
	mu     sync.Mutex
	states map[int64]models.DialogState
}

var (
	_ StateStore = (*MemoryStore)(nil)
	_ Purger     = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]models.DialogState)}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (*models.DialogState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[userID]
	if !ok {
		return nil, nil
	}
	state.Data = maps.Clone(state.Data)
	return &state, nil
}

func (s *MemoryStore) Put(_ context.Context, state *models.DialogState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	cp.Data = maps.Clone(state.Data)
	s.states[state.UserID] = cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
	return nil
}

func (s *MemoryStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, state := range s.states {
		if state.UpdatedAt.Before(cutoff) {
			delete(s.states, id)
			n++
		}
	}
	return n, nil
}
