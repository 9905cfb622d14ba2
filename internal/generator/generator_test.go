package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-quiz/internal/ai"
	"github.com/p-n-ai/pai-quiz/internal/grading"
	"github.com/p-n-ai/pai-quiz/internal/platform/validate"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

type staticContext string

func (s staticContext) RandomContext(int) string { return string(s) }

const photosynthesis = "Photosynthesis converts light energy into chemical energy stored in glucose."

func mcqRequest(n int) Request {
	return Request{NumQuestions: n, Difficulty: "easy", QuestionType: "MCQ"}
}

func TestGenerate_MCQ(t *testing.T) {
	mock := ai.NewMockProvider("```json\n" + `{"questions":[
		{"question":"What does photosynthesis store energy in?","options":["A) Glucose","B) Water","C) Oxygen"],"answer":"A) Glucose","explanation":"Glucose stores it.","concept":"Photosynthesis"},
		{"question":"What energy does photosynthesis start from?","options":["A) Heat","B) Light"],"answer":"b","concept":"Photosynthesis"},
		{"question":"Broken key?","options":["A) One","B) Two"],"answer":"E) Five"}
	]}` + "\n```")
	g := New(Config{AI: mock, Context: staticContext(photosynthesis)})

	qz, err := g.Generate(context.Background(), mcqRequest(3))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(qz.Questions) != 2 {
		t.Fatalf("questions = %d, want 2 (unresolvable answer dropped)", len(qz.Questions))
	}
	for _, q := range qz.Questions {
		if q.Type() != quiz.TypeMCQ {
			t.Errorf("question %q has type %v", q.Question, q.Type())
		}
		if q.Question == "Broken key?" {
			t.Error("question with an answer outside its options was kept")
		}
	}
	if len(g.History()) != 2 {
		t.Errorf("History() = %v, want 2 entries", g.History())
	}

	req := mock.LastRequest
	if req == nil || !req.JSON || req.Task != ai.TaskGeneration {
		t.Fatalf("LastRequest = %+v, want JSON generation request", req)
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{"Entropy token", "Generate EXACTLY 3 easy MCQ questions", `"options":["A) ...", "B) ...", "C) ...", "D) ..."]`, photosynthesis} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestGenerate_TrueFalseForcesOptions(t *testing.T) {
	mock := ai.NewMockProvider(`{"questions":[
		{"question":"Plants make glucose.","answer":"true"},
		{"question":"Photosynthesis needs no light.","options":["Yes","No"],"answer":"F"},
		{"question":"Is this gradable?","answer":"maybe"}
	]}`)
	g := New(Config{AI: mock, Context: staticContext(photosynthesis)})

	qz, err := g.Generate(context.Background(), Request{NumQuestions: 3, Difficulty: "medium", QuestionType: "True/False"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(qz.Questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(qz.Questions))
	}
	for _, q := range qz.Questions {
		if q.Type() != quiz.TypeTrueFalse {
			t.Errorf("question %q type = %v, want True/False", q.Question, q.Type())
		}
		switch q.Question {
		case "Plants make glucose.":
			if q.Answer != "True" {
				t.Errorf("answer = %q, want True", q.Answer)
			}
		case "Photosynthesis needs no light.":
			if q.Answer != "False" {
				t.Errorf("answer = %q, want False", q.Answer)
			}
		}
	}
}

func TestGenerate_ShortAnswerDropsOptions(t *testing.T) {
	mock := ai.NewMockProvider(`{"questions":[{"question":"Name the sugar.","options":["x"],"answer":"glucose"}]}`)
	g := New(Config{AI: mock, Context: staticContext(photosynthesis)})

	qz, err := g.Generate(context.Background(), Request{NumQuestions: 1, Difficulty: "hard", QuestionType: "Short Answer", Topic: "sugars"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if qz.Questions[0].Options != nil || qz.Questions[0].Type() != quiz.TypeShortAnswer {
		t.Errorf("question = %+v, want short answer", qz.Questions[0])
	}
	if !strings.Contains(mock.LastRequest.Messages[0].Content, "sugars") {
		t.Error("prompt should mention the topic")
	}
}

func TestGenerate_TruncatesToRequestedCount(t *testing.T) {
	var items []string
	for i := range 5 {
		items = append(items, fmt.Sprintf(`{"question":"Q%d?","answer":"a%d"}`, i, i))
	}
	mock := ai.NewMockProvider(`{"questions":[` + strings.Join(items, ",") + `]}`)
	g := New(Config{AI: mock, Context: staticContext(photosynthesis)})

	qz, err := g.Generate(context.Background(), Request{NumQuestions: 2, Difficulty: "easy", QuestionType: "Short Answer"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(qz.Questions) != 2 {
		t.Errorf("questions = %d, want 2", len(qz.Questions))
	}
}

func TestGenerate_InvalidRequest(t *testing.T) {
	g := New(Config{AI: ai.NewMockProvider("{}"), Context: staticContext(photosynthesis)})

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"zero questions", Request{NumQuestions: 0, Difficulty: "easy", QuestionType: "MCQ"}, "num_questions"},
		{"too many questions", Request{NumQuestions: 21, Difficulty: "easy", QuestionType: "MCQ"}, "num_questions"},
		{"bad difficulty", Request{NumQuestions: 1, Difficulty: "extreme", QuestionType: "MCQ"}, "difficulty"},
		{"bad type", Request{NumQuestions: 1, Difficulty: "easy", QuestionType: "Essay"}, "question_type"},
		{"long topic", Request{NumQuestions: 1, Difficulty: "easy", QuestionType: "MCQ", Topic: strings.Repeat("x", 201)}, "topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Generate(context.Background(), tt.req)
			var fields validate.FieldErrors
			if !errors.As(err, &fields) {
				t.Fatalf("Generate() error = %v, want FieldErrors", err)
			}
			if fields[tt.field] == "" {
				t.Errorf("no message for %q in %v", tt.field, fields)
			}
		})
	}
}

func TestGenerate_NoDocument(t *testing.T) {
	g := New(Config{AI: ai.NewMockProvider("{}"), Context: staticContext("")})
	if _, err := g.Generate(context.Background(), mcqRequest(1)); !errors.Is(err, ErrNoDocument) {
		t.Errorf("Generate() error = %v, want ErrNoDocument", err)
	}
}

func TestGenerate_MalformedOutput(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "Sure! Here is your quiz."},
		{"empty", "```json\n```"},
		{"missing answer", `{"questions":[{"question":"Q?"}]}`},
		{"no questions", `{"questions":[]}`},
		{"nothing gradable", `{"questions":[{"question":"Q?","answer":"x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(Config{AI: ai.NewMockProvider(tt.content), Context: staticContext(photosynthesis)})
			_, err := g.Generate(context.Background(), mcqRequest(1))
			if !errors.Is(err, ErrMalformedOutput) {
				t.Errorf("Generate() error = %v, want ErrMalformedOutput", err)
			}
		})
	}
}

func TestGenerate_ProviderError(t *testing.T) {
	mock := &ai.MockProvider{Err: errors.New("rate limited")}
	g := New(Config{AI: mock, Context: staticContext(photosynthesis)})

	_, err := g.Generate(context.Background(), mcqRequest(1))
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("Generate() error = %v, want wrapped provider error", err)
	}
}

func TestGenerate_BudgetExceeded(t *testing.T) {
	budget := ai.NewInMemoryBudget(0)
	budget.SetBudget("student-1", 20)
	mock := ai.NewMockProvider(`{"questions":[{"question":"Q?","answer":"a"}]}`)
	g := New(Config{AI: mock, Context: staticContext(photosynthesis), Budget: budget})
	req := Request{NumQuestions: 1, Difficulty: "easy", QuestionType: "Short Answer", ClientID: "student-1"}

	if _, err := g.Generate(context.Background(), req); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	if used, _, _ := budget.Usage("student-1"); used == 0 {
		t.Error("token usage was not recorded")
	}
	if _, err := g.Generate(context.Background(), req); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("second Generate() error = %v, want ErrBudgetExceeded", err)
	}
}

func TestGenerate_HistoryInPromptAndDuplicatesDropped(t *testing.T) {
	mock := ai.NewMockProvider(`{"questions":[{"question":"What is stored in glucose?","answer":"energy"}]}`)
	scorer := grading.NewScorer(&ai.MockProvider{Vectors: map[string][]float64{
		"what stored in glucose":       {1, 0},
		"which molecule stores energy": {1, 0.1},
		"where does oxygen go":         {0, 1},
	}}, grading.WithThreshold(grading.DefaultDuplicateLimit))
	g := New(Config{AI: mock, Context: staticContext(photosynthesis), Scorer: scorer})
	req := Request{NumQuestions: 2, Difficulty: "easy", QuestionType: "Short Answer"}

	if _, err := g.Generate(context.Background(), req); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}

	mock.Response = `{"questions":[
		{"question":"Which molecule stores energy?","answer":"glucose"},
		{"question":"Where does oxygen go?","answer":"air"}
	]}`
	qz, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	if !strings.Contains(mock.LastRequest.Messages[0].Content, "- What is stored in glucose?") {
		t.Error("prompt should list previously asked questions")
	}
	if len(qz.Questions) != 1 || qz.Questions[0].Question != "Where does oxygen go?" {
		t.Errorf("questions = %+v, want only the novel one", qz.Questions)
	}
}

func TestGenerate_DuplicateCheckEmbedsEachTextOnce(t *testing.T) {
	mock := ai.NewMockProvider(`{"questions":[
		{"question":"Delta?","answer":"d"},
		{"question":"Epsilon?","answer":"e"},
		{"question":"Zeta?","answer":"z"}
	]}`)
	embedder := &ai.MockProvider{Vectors: map[string][]float64{
		"alpha":   {1, 0, 0, 0, 0, 0},
		"beta":    {0, 1, 0, 0, 0, 0},
		"gamma":   {0, 0, 1, 0, 0, 0},
		"delta":   {0, 0, 0, 1, 0, 0},
		"epsilon": {0, 0, 0, 0, 1, 0},
		"zeta":    {0.9, 0, 0, 0, 0, 0.1},
	}}
	scorer := grading.NewScorer(embedder, grading.WithThreshold(grading.DefaultDuplicateLimit))
	g := New(Config{AI: mock, Context: staticContext(photosynthesis), Scorer: scorer})
	g.history = []string{"Alpha", "Beta", "Gamma"}

	qz, err := g.Generate(context.Background(), Request{NumQuestions: 3, Difficulty: "easy", QuestionType: "Short Answer"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := embedder.EmbedCalls(); got != 6 {
		t.Errorf("EmbedCalls() = %d, want 6 (one per question and history entry)", got)
	}
	if len(qz.Questions) != 2 {
		t.Fatalf("questions = %+v, want Zeta dropped as a near-duplicate of Alpha", qz.Questions)
	}
	for _, q := range qz.Questions {
		if q.Question == "Zeta?" {
			t.Errorf("near-duplicate %q was kept", q.Question)
		}
	}
}

func TestGenerate_AllDuplicatesKept(t *testing.T) {
	mock := ai.NewMockProvider(`{"questions":[{"question":"Same?","answer":"yes"}]}`)
	scorer := grading.NewScorer(nil, grading.WithThreshold(grading.DefaultDuplicateLimit))
	g := New(Config{AI: mock, Context: staticContext(photosynthesis), Scorer: scorer})
	req := Request{NumQuestions: 1, Difficulty: "easy", QuestionType: "Short Answer"}

	for range 2 {
		qz, err := g.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if len(qz.Questions) != 1 {
			t.Fatalf("questions = %d, want 1", len(qz.Questions))
		}
	}
	if len(g.History()) != 1 {
		t.Errorf("History() = %v, want one entry", g.History())
	}
}

func TestRemember_Bounded(t *testing.T) {
	g := New(Config{HistoryLimit: 3, PromptHistory: 2})
	var qs []quiz.Question
	for i := range 5 {
		qs = append(qs, quiz.Question{Question: fmt.Sprintf("Q%d", i)})
	}
	g.remember(qs)

	got := g.History()
	if len(got) != 3 || got[0] != "Q2" || got[2] != "Q4" {
		t.Errorf("History() = %v, want [Q2 Q3 Q4]", got)
	}
	if recent := g.recentHistory(); len(recent) != 2 || recent[0] != "Q3" {
		t.Errorf("recentHistory() = %v, want [Q3 Q4]", recent)
	}
}
