package quiz_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

func sampleQuiz() quiz.Quiz {
	return quiz.Quiz{Questions: []quiz.Question{
		{
			Question:    "Which colour is the sky?",
			Options:     []string{"A) red", "B) blue", "C) green"},
			Answer:      "B",
			Explanation: "Rayleigh scattering favours blue light.",
			Concept:     "scattering",
		},
		{
			Question: "Water boils at 100C at sea level.",
			Options:  []string{"True", "False"},
			Answer:   "True",
		},
	}}
}

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := quiz.NewMemoryStore()
	ctx := context.Background()

	id, err := store.Save(ctx, sampleQuiz())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id == "" {
		t.Fatal("Save() returned empty id")
	}

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Questions) != 2 {
		t.Errorf("Questions count = %d, want 2", len(got.Questions))
	}
	if got.Questions[0].Answer != "B" {
		t.Errorf("Answer = %q, want B", got.Questions[0].Answer)
	}
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	store := quiz.NewMemoryStore()

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, quiz.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_UniqueIDs(t *testing.T) {
	store := quiz.NewMemoryStore()
	ctx := context.Background()

	seen := make(map[string]bool)
	for range 100 {
		id, err := store.Save(ctx, sampleQuiz())
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if store.Len() != 100 {
		t.Errorf("Len() = %d, want 100", store.Len())
	}
}

func TestMemoryStore_StoredQuizIsImmutable(t *testing.T) {
	store := quiz.NewMemoryStore()
	ctx := context.Background()

	original := sampleQuiz()
	id, _ := store.Save(ctx, original)

	// Mutating the caller's copy or a fetched copy must not leak into the store.
	original.Questions[0].Options[1] = "B) purple"
	fetched, _ := store.Get(ctx, id)
	fetched.Questions[0].Answer = "C"

	got, _ := store.Get(ctx, id)
	if got.Questions[0].Options[1] != "B) blue" {
		t.Errorf("Options[1] = %q, want B) blue", got.Questions[0].Options[1])
	}
	if got.Questions[0].Answer != "B" {
		t.Errorf("Answer = %q, want B", got.Questions[0].Answer)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := quiz.NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := store.Save(ctx, sampleQuiz())
			if err != nil {
				t.Errorf("Save() error = %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			got, err := store.Get(ctx, id)
			if err != nil {
				t.Errorf("Get(%s) error = %v", id, err)
				return
			}
			if len(got.Questions) != 2 {
				t.Errorf("Get(%s) returned %d questions", id, len(got.Questions))
			}
		}(id)
	}
	wg.Wait()
}

func TestRedisStore_NilClient(t *testing.T) {
	if _, err := quiz.NewRedisStore(nil, 0); err == nil {
		t.Fatal("NewRedisStore(nil) should return error")
	}
}
