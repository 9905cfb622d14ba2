// Package quiz defines generated quizzes and the store that keeps them server-side.
package quiz

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a quiz id is unknown, expired or was issued
// before a restart cleared the store.
var ErrNotFound = errors.New("quiz not found")

// ErrInvalidQuiz is returned by Validate.
var ErrInvalidQuiz = errors.New("invalid quiz")

// Type is the derived kind of a question. It is never stored.
type Type int

const (
	TypeShortAnswer Type = iota
	TypeTrueFalse
	TypeMCQ
)

func (t Type) String() string {
	switch t {
	case TypeShortAnswer:
		return "Short Answer"
	case TypeTrueFalse:
		return "True/False"
	case TypeMCQ:
		return "MCQ"
	default:
		return "unknown"
	}
}

// ParseType maps the question_type names used by clients and prompts.
func ParseType(s string) (Type, error) {
	switch strings.TrimSpace(s) {
	case "MCQ":
		return TypeMCQ, nil
	case "True/False":
		return TypeTrueFalse, nil
	case "Short Answer":
		return TypeShortAnswer, nil
	default:
		return TypeShortAnswer, fmt.Errorf("unknown question type %q", s)
	}
}

// TrueFalseOptions is the exact option list that marks a True/False question.
var TrueFalseOptions = []string{"True", "False"}

// Classify derives the question type from the shape of its options.
func Classify(options []string) Type {
	if len(options) == 0 {
		return TypeShortAnswer
	}
	if len(options) == 2 && options[0] == TrueFalseOptions[0] && options[1] == TrueFalseOptions[1] {
		return TypeTrueFalse
	}
	return TypeMCQ
}

// Question is one generated question including its answer key.
type Question struct {
	Question    string   `json:"question" yaml:"question"`
	Options     []string `json:"options,omitempty" yaml:"options,omitempty"`
	Answer      string   `json:"answer" yaml:"answer"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Concept     string   `json:"concept,omitempty" yaml:"concept,omitempty"`
}

// Type returns the derived question type.
func (q Question) Type() Type {
	return Classify(q.Options)
}

// Quiz is an ordered set of questions. It is immutable once stored.
type Quiz struct {
	Questions []Question `json:"questions" yaml:"questions"`
}

// Validate checks the minimum a quiz needs to be gradable.
func (qz Quiz) Validate() error {
	if len(qz.Questions) == 0 {
		return fmt.Errorf("%w: no questions", ErrInvalidQuiz)
	}
	for i, q := range qz.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("%w: question %d has no text", ErrInvalidQuiz, i)
		}
		if strings.TrimSpace(q.Answer) == "" {
			return fmt.Errorf("%w: question %d has no answer", ErrInvalidQuiz, i)
		}
	}
	return nil
}

// clone deep-copies the quiz so callers cannot mutate stored state.
func (qz Quiz) clone() Quiz {
	out := Quiz{Questions: make([]Question, len(qz.Questions))}
	for i, q := range qz.Questions {
		if q.Options != nil {
			q.Options = append([]string(nil), q.Options...)
		}
		out.Questions[i] = q
	}
	return out
}

// ClientQuestion is the answer-free view of a question sent to untrusted clients.
type ClientQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
}

// ClientView is the answer-free view of a whole quiz.
type ClientView struct {
	Questions []ClientQuestion `json:"questions"`
}

// ClientView strips answers, explanations and concepts.
func (qz Quiz) ClientView() ClientView {
	view := ClientView{Questions: make([]ClientQuestion, 0, len(qz.Questions))}
	for _, q := range qz.Questions {
		cq := ClientQuestion{Question: q.Question}
		if len(q.Options) > 0 {
			cq.Options = append([]string(nil), q.Options...)
		}
		view.Questions = append(view.Questions, cq)
	}
	return view
}
