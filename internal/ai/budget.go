package ai

import (
	"fmt"
	"sync"
)

// BudgetChecker checks and records token usage against per-client budgets.
type BudgetChecker interface {
	// Check returns true if the client has budget remaining.
	Check(clientID string) (bool, error)
	// Record records token usage for a client.
	Record(clientID string, tokens int) error
	// Usage returns current usage and budget for a client.
	Usage(clientID string) (used int64, budget int64, err error)
}

// InMemoryBudget is an in-memory token budget tracker. A client without an
// explicit budget gets the default; a default of zero means unlimited.
type InMemoryBudget struct {
	mu            sync.RWMutex
	defaultBudget int64
	budgets       map[string]int64 // client -> budget limit
	usage         map[string]int64 // client -> tokens used
}

// NewInMemoryBudget creates a new in-memory budget tracker.
func NewInMemoryBudget(defaultBudget int64) *InMemoryBudget {
	return &InMemoryBudget{
		defaultBudget: defaultBudget,
		budgets:       make(map[string]int64),
		usage:         make(map[string]int64),
	}
}

// SetBudget sets the token budget for a client.
func (b *InMemoryBudget) SetBudget(clientID string, tokens int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.budgets[clientID] = tokens
}

func (b *InMemoryBudget) Check(clientID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	budget := b.budgetFor(clientID)
	if budget <= 0 {
		return true, nil
	}
	return b.usage[clientID] < budget, nil
}

func (b *InMemoryBudget) Record(clientID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[clientID] += int64(tokens)
	return nil
}

func (b *InMemoryBudget) Usage(clientID string) (int64, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.usage[clientID], b.budgetFor(clientID), nil
}

func (b *InMemoryBudget) budgetFor(clientID string) int64 {
	if budget, ok := b.budgets[clientID]; ok {
		return budget
	}
	return b.defaultBudget
}
