package quiz

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Store keeps generated quizzes keyed by an opaque id. Quizzes are write-once.
type Store interface {
	Save(ctx context.Context, qz Quiz) (string, error)
	Get(ctx context.Context, id string) (Quiz, error)
}

// MemoryStore is a process-lifetime in-memory Store.
type MemoryStore struct {
	quizzes map[string]Quiz
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory quiz store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quizzes: make(map[string]Quiz),
	}
}

func (s *MemoryStore) Save(_ context.Context, qz Quiz) (string, error) {
	stored := qz.clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	id := newID()
	for _, taken := s.quizzes[id]; taken; _, taken = s.quizzes[id] {
		id = newID()
	}
	s.quizzes[id] = stored
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Quiz, error) {
	s.mu.RLock()
	qz, ok := s.quizzes[id]
	s.mu.RUnlock()

	if !ok {
		return Quiz{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return qz.clone(), nil
}

// Len returns the number of stored quizzes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quizzes)
}

func newID() string {
	return uuid.NewString()
}
