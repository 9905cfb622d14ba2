// Package generator turns the active document into quizzes with an LLM.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/ai"
	"github.com/p-n-ai/pai-quiz/internal/document"
	"github.com/p-n-ai/pai-quiz/internal/grading"
	"github.com/p-n-ai/pai-quiz/internal/platform/validate"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const (
	defaultHistoryLimit  = 100
	defaultPromptHistory = 30
	defaultMaxTokens     = 4096
)

var (
	// ErrNoDocument is returned when no document has been indexed yet.
	ErrNoDocument = errors.New("no document indexed")
	// ErrBudgetExceeded is returned when the client has spent its token budget.
	ErrBudgetExceeded = errors.New("token budget exceeded")
)

// Request describes the quiz to generate.
type Request struct {
	Topic        string `json:"topic" validate:"max=200"`
	NumQuestions int    `json:"num_questions" validate:"min=1,max=20"`
	Difficulty   string `json:"difficulty" validate:"required,oneof=easy medium hard"`
	QuestionType string `json:"question_type" validate:"required,oneof=MCQ 'True/False' 'Short Answer'"`
	ClientID     string `json:"-"`
}

// ContextSource supplies sampled document text for prompts.
type ContextSource interface {
	RandomContext(k int) string
}

// Config holds dependencies for the generator.
type Config struct {
	AI      ai.Provider
	Context ContextSource
	// Scorer, when set, drops questions that are near-duplicates of recent
	// history. Its threshold is the duplicate limit.
	Scorer        *grading.Scorer
	Budget        ai.BudgetChecker
	ContextChunks int // chunks sampled per prompt (default 8)
	HistoryLimit  int // questions remembered (default 100)
	PromptHistory int // remembered questions listed in the prompt (default 30)
}

// Generator builds quizzes from document context. History is shared
// across calls so later quizzes avoid earlier questions.
type Generator struct {
	ai            ai.Provider
	source        ContextSource
	scorer        *grading.Scorer
	budget        ai.BudgetChecker
	contextChunks int
	historyLimit  int
	promptHistory int

	mu      sync.Mutex
	history []string
}

// New creates a generator.
func New(cfg Config) *Generator {
	g := &Generator{
		ai:            cfg.AI,
		source:        cfg.Context,
		scorer:        cfg.Scorer,
		budget:        cfg.Budget,
		contextChunks: cfg.ContextChunks,
		historyLimit:  cfg.HistoryLimit,
		promptHistory: cfg.PromptHistory,
	}
	if g.contextChunks <= 0 {
		g.contextChunks = document.DefaultContextChunks
	}
	if g.historyLimit <= 0 {
		g.historyLimit = defaultHistoryLimit
	}
	if g.promptHistory <= 0 {
		g.promptHistory = defaultPromptHistory
	}
	return g
}

// Generate asks the model for a quiz, cleans and checks the result, and
// records its questions in history.
func (g *Generator) Generate(ctx context.Context, req Request) (quiz.Quiz, error) {
	if err := validate.Struct(req); err != nil {
		return quiz.Quiz{}, err
	}
	qtype, err := quiz.ParseType(req.QuestionType)
	if err != nil {
		return quiz.Quiz{}, err
	}

	if g.budget != nil {
		ok, err := g.budget.Check(req.ClientID)
		if err != nil {
			return quiz.Quiz{}, fmt.Errorf("checking budget: %w", err)
		}
		if !ok {
			return quiz.Quiz{}, ErrBudgetExceeded
		}
	}

	docContext := g.source.RandomContext(g.contextChunks)
	if docContext == "" {
		return quiz.Quiz{}, ErrNoDocument
	}

	resp, err := g.ai.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "user", Content: g.buildPrompt(req, docContext)},
		},
		MaxTokens:   defaultMaxTokens,
		Temperature: 0.9,
		JSON:        true,
		Task:        ai.TaskGeneration,
	})
	if err != nil {
		return quiz.Quiz{}, fmt.Errorf("generating quiz: %w", err)
	}
	if g.budget != nil {
		if err := g.budget.Record(req.ClientID, resp.TotalTokens()); err != nil {
			slog.Warn("failed to record token usage", "client_id", req.ClientID, "error", err)
		}
	}

	qz, err := parseQuiz(resp.Content)
	if err != nil {
		return quiz.Quiz{}, err
	}

	rand.Shuffle(len(qz.Questions), func(i, j int) {
		qz.Questions[i], qz.Questions[j] = qz.Questions[j], qz.Questions[i]
	})

	qz.Questions = conform(qz.Questions, qtype)
	if len(qz.Questions) == 0 {
		return quiz.Quiz{}, fmt.Errorf("%w: no usable %s questions", ErrMalformedOutput, qtype)
	}
	qz.Questions = g.dropNearDuplicates(ctx, qz.Questions)
	if len(qz.Questions) > req.NumQuestions {
		qz.Questions = qz.Questions[:req.NumQuestions]
	}

	g.remember(qz.Questions)

	slog.Info("quiz generated",
		"question_type", qtype.String(),
		"difficulty", req.Difficulty,
		"requested", req.NumQuestions,
		"questions", len(qz.Questions),
		"model", resp.Model,
		"tokens", resp.TotalTokens(),
	)
	return qz, nil
}

func (g *Generator) buildPrompt(req Request, docContext string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Entropy token (use this to vary your output): %s\n\n", entropyToken())

	if recent := g.recentHistory(); len(recent) > 0 {
		b.WriteString("IMPORTANT: Do NOT generate any of these previously asked questions or anything closely similar to them:\n")
		for _, q := range recent {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Generate EXACTLY %d %s %s questions\n", req.NumQuestions, req.Difficulty, req.QuestionType)
	b.WriteString("STRICTLY based on the DOCUMENT CONTENT provided below.\n")
	if topic := strings.TrimSpace(req.Topic); topic != "" {
		fmt.Fprintf(&b, "Focus on this topic where the document covers it: %s\n", topic)
	}
	b.WriteString(`
Rules:
- Every question MUST come from a DIFFERENT part of the document.
- DO NOT repeat or rephrase any previously asked question listed above.
- DO NOT create meta questions about the document itself.
- DO NOT refer to "the document" or "the text" in questions.
- DO NOT hallucinate facts not present in the document.
- For MCQ: the answer field MUST be the FULL option text (e.g. "A) When current is high"), NOT just the letter.
- Vary question styles: some factual, some conceptual, some application-based.

Return STRICT JSON ONLY, no markdown, no extra text.

FORMAT:
`)
	b.WriteString(formatTemplate(req.QuestionType))
	b.WriteString("\nDOCUMENT CONTENT:\n")
	b.WriteString(docContext)
	b.WriteString("\n")
	return b.String()
}

func formatTemplate(questionType string) string {
	switch questionType {
	case quiz.TypeMCQ.String():
		return `{
 "questions":[
  {
   "question":"...",
   "options":["A) ...", "B) ...", "C) ...", "D) ..."],
   "answer":"A) ...",
   "explanation":"...",
   "concept":"..."
  }
 ]
}
`
	case quiz.TypeTrueFalse.String():
		return `{
 "questions":[
  {
   "question":"...",
   "options":["True","False"],
   "answer":"True",
   "explanation":"...",
   "concept":"..."
  }
 ]
}
`
	default:
		return `{
 "questions":[
  {
   "question":"...",
   "answer":"...",
   "explanation":"...",
   "concept":"..."
  }
 ]
}
`
	}
}

func entropyToken() string {
	return fmt.Sprintf("%d-%s", 100000+rand.IntN(900000), time.Now().Format("15:04:05.000000"))
}

// parseQuiz strips markdown fences, checks the schema and decodes.
func parseQuiz(content string) (quiz.Quiz, error) {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, "```", ""))
	if cleaned == "" {
		return quiz.Quiz{}, fmt.Errorf("%w: empty reply", ErrMalformedOutput)
	}

	raw := []byte(cleaned)
	if err := checkSchema(raw); err != nil {
		return quiz.Quiz{}, err
	}
	var qz quiz.Quiz
	if err := json.Unmarshal(raw, &qz); err != nil {
		return quiz.Quiz{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return qz, nil
}

// conform makes each question match the requested type, dropping the ones
// that cannot be graded as that type.
func conform(questions []quiz.Question, want quiz.Type) []quiz.Question {
	out := questions[:0]
	for _, q := range questions {
		q.Question = strings.TrimSpace(q.Question)
		q.Answer = strings.TrimSpace(q.Answer)
		if q.Question == "" || q.Answer == "" {
			continue
		}

		switch want {
		case quiz.TypeTrueFalse:
			q.Options = append([]string(nil), quiz.TrueFalseOptions...)
			answer, ok := trueFalseAnswer(q.Answer)
			if !ok {
				slog.Warn("dropping true/false question with unusable answer", "answer", q.Answer)
				continue
			}
			q.Answer = answer
		case quiz.TypeMCQ:
			if len(q.Options) < 2 || quiz.Classify(q.Options) != quiz.TypeMCQ {
				slog.Warn("dropping multiple-choice question without options", "question", q.Question)
				continue
			}
			if !containsOption(q.Options, grading.ResolveFullAnswer(q.Answer, q.Options)) {
				slog.Warn("dropping multiple-choice question whose answer matches no option",
					"question", q.Question,
					"answer", q.Answer,
				)
				continue
			}
		default:
			q.Options = nil
		}
		out = append(out, q)
	}
	return out
}

func trueFalseAnswer(answer string) (string, bool) {
	resolved := grading.ResolveFullAnswer(answer, quiz.TrueFalseOptions)
	for _, opt := range quiz.TrueFalseOptions {
		if strings.EqualFold(resolved, opt) {
			return opt, true
		}
	}
	return "", false
}

func containsOption(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

// dropNearDuplicates removes questions too similar to recent history. If
// every question would go, the originals are kept. Each question and
// history entry is embedded once.
func (g *Generator) dropNearDuplicates(ctx context.Context, questions []quiz.Question) []quiz.Question {
	recent := g.recentHistory()
	if g.scorer == nil || len(recent) == 0 {
		return questions
	}

	texts := make([]string, 0, len(questions)+len(recent))
	for _, q := range questions {
		texts = append(texts, q.Question)
	}
	texts = append(texts, recent...)
	vecs := g.scorer.Vectors(ctx, texts)
	questionVecs, recentVecs := vecs[:len(questions)], vecs[len(questions):]

	kept := make([]quiz.Question, 0, len(questions))
	for i, q := range questions {
		if !g.isNearDuplicate(q.Question, questionVecs[i], recent, recentVecs) {
			kept = append(kept, q)
		}
	}
	if len(kept) == 0 {
		slog.Warn("every generated question resembles history, keeping them all", "questions", len(questions))
		return questions
	}
	if dropped := len(questions) - len(kept); dropped > 0 {
		slog.Info("dropped near-duplicate questions", "dropped", dropped)
	}
	return kept
}

func (g *Generator) isNearDuplicate(question string, vec []float64, recent []string, recentVecs [][]float64) bool {
	for i, prev := range recent {
		if strings.EqualFold(question, prev) || g.scorer.SimilarVectors(vec, recentVecs[i]) {
			return true
		}
	}
	return false
}

func (g *Generator) recentHistory() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	start := max(0, len(g.history)-g.promptHistory)
	return append([]string(nil), g.history[start:]...)
}

func (g *Generator) remember(questions []quiz.Question) {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]struct{}, len(g.history))
	for _, h := range g.history {
		seen[h] = struct{}{}
	}
	for _, q := range questions {
		if _, ok := seen[q.Question]; ok {
			continue
		}
		seen[q.Question] = struct{}{}
		g.history = append(g.history, q.Question)
	}
	if over := len(g.history) - g.historyLimit; over > 0 {
		g.history = append([]string(nil), g.history[over:]...)
	}
}

// History returns the remembered questions, oldest first.
func (g *Generator) History() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.history...)
}
