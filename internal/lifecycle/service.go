// Package lifecycle creates, serves and grades quizzes by opaque id.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-quiz/internal/attempt"
	"github.com/p-n-ai/pai-quiz/internal/generator"
	"github.com/p-n-ai/pai-quiz/internal/grading"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// Generator produces a quiz for a request.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) (quiz.Quiz, error)
}

// ErrGenerationDisabled is returned by GenerateQuiz when no generator is
// configured.
var ErrGenerationDisabled = errors.New("quiz generation is not configured")

// Config holds the service's dependencies. Store and Engine are required.
type Config struct {
	Store     quiz.Store
	Engine    *grading.Engine
	Attempts  attempt.Log
	Generator Generator
}

// Service is the quiz lifecycle API. Answers stay in the store; callers
// only ever see client views and graded results.
type Service struct {
	store     quiz.Store
	engine    *grading.Engine
	attempts  attempt.Log
	generator Generator
}

// New creates a lifecycle service.
func New(cfg Config) *Service {
	engine := cfg.Engine
	if engine == nil {
		engine = grading.NewEngine(grading.EngineConfig{})
	}
	return &Service{
		store:     cfg.Store,
		engine:    engine,
		attempts:  cfg.Attempts,
		generator: cfg.Generator,
	}
}

// CreateQuiz validates and stores a quiz and returns its id.
func (s *Service) CreateQuiz(ctx context.Context, qz quiz.Quiz) (string, error) {
	if err := qz.Validate(); err != nil {
		return "", err
	}
	id, err := s.store.Save(ctx, qz)
	if err != nil {
		return "", fmt.Errorf("saving quiz: %w", err)
	}
	slog.Info("quiz stored", "quiz_id", id, "questions", len(qz.Questions))
	return id, nil
}

// ClientView returns the answer-free view of a stored quiz.
func (s *Service) ClientView(ctx context.Context, id string) (quiz.ClientView, error) {
	qz, err := s.store.Get(ctx, id)
	if err != nil {
		return quiz.ClientView{}, err
	}
	return qz.ClientView(), nil
}

// GradeSubmission grades items against the stored quiz. An unknown id
// returns quiz.ErrNotFound.
func (s *Service) GradeSubmission(ctx context.Context, id string, items []grading.SubmissionItem) (grading.Summary, error) {
	return s.GradeSubmissionEach(ctx, id, items, nil)
}

// GradeSubmissionEach is GradeSubmission with per-result streaming. If ctx
// ends while grading, the context error is returned and no attempt is
// recorded.
func (s *Service) GradeSubmissionEach(ctx context.Context, id string, items []grading.SubmissionItem, onResult func(pos int, r grading.Result)) (grading.Summary, error) {
	qz, err := s.store.Get(ctx, id)
	if err != nil {
		return grading.Summary{}, err
	}

	summary := s.engine.GradeEach(ctx, qz, items, onResult)
	if err := ctx.Err(); err != nil {
		slog.Info("grading abandoned", "quiz_id", id, "error", err)
		return grading.Summary{}, err
	}
	s.record(ctx, id, summary)

	slog.Info("submission graded",
		"quiz_id", id,
		"score", summary.Score,
		"total", summary.Total,
	)
	return summary, nil
}

// Attempts lists recorded attempts for a stored quiz.
func (s *Service) Attempts(ctx context.Context, id string) ([]attempt.Attempt, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.attempts == nil {
		return nil, nil
	}
	return s.attempts.List(ctx, id)
}

// GenerateQuiz generates, stores and returns a new quiz's id and client view.
func (s *Service) GenerateQuiz(ctx context.Context, req generator.Request) (string, quiz.ClientView, error) {
	if s.generator == nil {
		return "", quiz.ClientView{}, ErrGenerationDisabled
	}
	qz, err := s.generator.Generate(ctx, req)
	if err != nil {
		return "", quiz.ClientView{}, err
	}
	id, err := s.CreateQuiz(ctx, qz)
	if err != nil {
		return "", quiz.ClientView{}, err
	}
	return id, qz.ClientView(), nil
}

// record stores the attempt. Failures are logged and do not fail grading.
func (s *Service) record(ctx context.Context, id string, summary grading.Summary) {
	if s.attempts == nil {
		return
	}
	if _, err := s.attempts.Record(context.WithoutCancel(ctx), attempt.FromSummary(id, summary)); err != nil {
		slog.Error("failed to record attempt", "quiz_id", id, "error", err)
	}
}
