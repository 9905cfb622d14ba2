package grading

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

// NoExplanation is shown for an incorrect answer whose question stores no
// explanation.
const NoExplanation = "No explanation available."

const defaultConcurrency = 4

// SubmissionItem is one answered question in a submission.
type SubmissionItem struct {
	QuestionIndex int    `json:"question_index"`
	UserAnswer    string `json:"user_answer"`
}

// Result is the graded outcome of one submission item.
type Result struct {
	Question        string  `json:"question"`
	UserAnswer      string  `json:"user_answer"`
	CorrectAnswer   string  `json:"correct_answer"`
	Correct         bool    `json:"correct"`
	SimilarityScore float64 `json:"similarity_score"`
	Explanation     *string `json:"explanation"`
	Concept         string  `json:"concept"`
}

// Summary is the graded submission. Results follow submission order with
// out-of-range items omitted.
type Summary struct {
	Score   int      `json:"score"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
}

// EngineConfig holds dependencies for the grading engine.
type EngineConfig struct {
	Scorer      *Scorer
	Concurrency int // concurrent short-answer scorings (default 4)
}

// Engine grades submissions against stored quizzes. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	scorer      *Scorer
	concurrency int
}

// NewEngine creates a grading engine.
func NewEngine(cfg EngineConfig) *Engine {
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = NewScorer(nil)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Engine{scorer: scorer, concurrency: concurrency}
}

// Grade grades every in-range item of a submission.
func (e *Engine) Grade(ctx context.Context, qz quiz.Quiz, items []SubmissionItem) Summary {
	return e.GradeEach(ctx, qz, items, nil)
}

// GradeEach grades like Grade and also calls onResult for each item as soon
// as it is graded. pos is the item's position in the returned Results.
// onResult calls are serialized but arrive in completion order.
func (e *Engine) GradeEach(ctx context.Context, qz quiz.Quiz, items []SubmissionItem, onResult func(pos int, r Result)) Summary {
	type job struct {
		item     SubmissionItem
		question quiz.Question
	}

	jobs := make([]job, 0, len(items))
	for _, item := range items {
		if item.QuestionIndex < 0 || item.QuestionIndex >= len(qz.Questions) {
			slog.Debug("skipping out-of-range submission item",
				"question_index", item.QuestionIndex,
				"questions", len(qz.Questions),
			)
			continue
		}
		jobs = append(jobs, job{item: item, question: qz.Questions[item.QuestionIndex]})
	}

	results := make([]Result, len(jobs))
	var mu sync.Mutex
	emit := func(pos int, r Result) {
		results[pos] = r
		if onResult == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onResult(pos, r)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for pos, j := range jobs {
		if j.question.Type() != quiz.TypeShortAnswer {
			emit(pos, e.gradeChoice(j.question, j.item.UserAnswer))
			continue
		}
		g.Go(func() error {
			emit(pos, e.gradeShortAnswer(gctx, j.question, j.item.UserAnswer))
			return nil
		})
	}
	_ = g.Wait() // workers never fail; degraded scores are zeros

	score := 0
	for _, r := range results {
		if r.Correct {
			score++
		}
	}
	return Summary{Score: score, Total: len(results), Results: results}
}

// gradeChoice grades MCQ and True/False questions by answer reconciliation.
func (e *Engine) gradeChoice(q quiz.Question, userAnswer string) Result {
	correct := AnswersMatch(userAnswer, q.Answer, q.Options)
	similarity := 0.0
	if correct {
		similarity = 1.0
	}
	display := q.Answer
	if q.Type() == quiz.TypeMCQ {
		display = ResolveFullAnswer(q.Answer, q.Options)
	}
	return newResult(q, userAnswer, display, correct, similarity)
}

func (e *Engine) gradeShortAnswer(ctx context.Context, q quiz.Question, userAnswer string) Result {
	correct, similarity := e.scorer.IsSemanticallyCorrect(ctx, userAnswer, q.Answer)
	return newResult(q, userAnswer, q.Answer, correct, similarity)
}

func newResult(q quiz.Question, userAnswer, correctAnswer string, correct bool, similarity float64) Result {
	r := Result{
		Question:        q.Question,
		UserAnswer:      userAnswer,
		CorrectAnswer:   correctAnswer,
		Correct:         correct,
		SimilarityScore: round3(similarity),
		Concept:         q.Concept,
	}
	if !correct {
		explanation := q.Explanation
		if strings.TrimSpace(explanation) == "" {
			explanation = NoExplanation
		}
		r.Explanation = &explanation
	}
	return r
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
