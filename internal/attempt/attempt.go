// Package attempt records graded submissions and exports them.
package attempt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-quiz/internal/grading"
)

// Attempt is one graded submission of a quiz.
type Attempt struct {
	ID        string           `json:"id"`
	QuizID    string           `json:"quiz_id"`
	Score     int              `json:"score"`
	Total     int              `json:"total"`
	Results   []grading.Result `json:"results"`
	CreatedAt time.Time        `json:"created_at"`
}

// FromSummary builds an unsaved attempt for a graded submission.
func FromSummary(quizID string, s grading.Summary) Attempt {
	return Attempt{
		QuizID:  quizID,
		Score:   s.Score,
		Total:   s.Total,
		Results: s.Results,
	}
}

// Log stores attempts. Record assigns ID and CreatedAt when unset; List
// returns a quiz's attempts oldest first.
type Log interface {
	Record(ctx context.Context, a Attempt) (Attempt, error)
	List(ctx context.Context, quizID string) ([]Attempt, error)
}

func prepare(a Attempt) (Attempt, error) {
	if a.QuizID == "" {
		return Attempt{}, fmt.Errorf("quiz_id is required")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Results == nil {
		a.Results = []grading.Result{}
	}
	return a, nil
}

// MemoryLog is an in-memory Log.
type MemoryLog struct {
	attempts map[string][]Attempt // quiz ID -> attempts
	mu       sync.RWMutex
}

// NewMemoryLog creates an empty in-memory attempt log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{attempts: make(map[string][]Attempt)}
}

func (l *MemoryLog) Record(_ context.Context, a Attempt) (Attempt, error) {
	a, err := prepare(a)
	if err != nil {
		return Attempt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts[a.QuizID] = append(l.attempts[a.QuizID], a)
	return a, nil
}

func (l *MemoryLog) List(_ context.Context, quizID string) ([]Attempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Attempt(nil), l.attempts[quizID]...), nil
}
