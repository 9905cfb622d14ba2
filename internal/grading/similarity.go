package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/p-n-ai/pai-quiz/internal/ai"
)

const (
	DefaultThreshold      = 0.50
	DefaultDuplicateLimit = 0.65
	defaultEmbedTimeout   = 10 * time.Second
	vectorConcurrency     = 8
)

// fillerWords are dropped before scoring; they carry no meaning for grading.
var fillerWords = map[string]struct{}{
	"from": {}, "the": {}, "a": {}, "an": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "to": {}, "of": {},
}

// Normalize lowercases text, strips punctuation and filler words, and
// collapses whitespace.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = cases.Lower(language.Und).String(norm.NFKC.String(text))

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, text)

	words := strings.Fields(cleaned)
	kept := words[:0]
	for _, w := range words {
		if _, filler := fillerWords[w]; !filler {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// Cosine returns the cosine similarity of two equal-length vectors.
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, errors.New("zero-length vector")
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Scorer grades free text by embedding similarity. It never returns an
// error: any embedding failure scores 0.0.
type Scorer struct {
	embedder  ai.Embedder
	threshold float64
	timeout   time.Duration
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithThreshold sets the minimum score counted as correct.
func WithThreshold(t float64) ScorerOption {
	return func(s *Scorer) {
		s.threshold = t
	}
}

// WithEmbedTimeout bounds each scoring call.
func WithEmbedTimeout(d time.Duration) ScorerOption {
	return func(s *Scorer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScorer creates a scorer over embedder. A nil embedder scores every
// pair as 0.0.
func NewScorer(embedder ai.Embedder, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		embedder:  embedder,
		threshold: DefaultThreshold,
		timeout:   defaultEmbedTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AtThreshold returns a copy of the scorer using a different threshold.
func (s *Scorer) AtThreshold(t float64) *Scorer {
	c := *s
	c.threshold = t
	return &c
}

// Threshold returns the decision threshold.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Score returns the semantic similarity of two texts in [0,1].
func (s *Scorer) Score(ctx context.Context, text, reference string) float64 {
	a, b := Normalize(text), Normalize(reference)
	if a == "" || b == "" {
		return 0
	}

	score, err := s.similarity(ctx, a, b)
	if err != nil {
		slog.Warn("similarity scoring degraded to zero", "error", err)
		return 0
	}
	return clamp(score)
}

// IsSemanticallyCorrect applies the threshold to Score. A score equal to
// the threshold counts as correct.
func (s *Scorer) IsSemanticallyCorrect(ctx context.Context, text, reference string) (bool, float64) {
	score := s.Score(ctx, text, reference)
	return meetsThreshold(score, s.threshold), score
}

// Vectors embeds the normalized form of each text once, concurrently and
// within one timeout window. A text that normalizes to nothing or fails to
// embed gets a nil vector.
func (s *Scorer) Vectors(ctx context.Context, texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	if s.embedder == nil {
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(vectorConcurrency)
	for i, text := range texts {
		normalized := Normalize(text)
		if normalized == "" {
			continue
		}
		g.Go(func() error {
			vec, err := s.embedder.Embed(ctx, normalized)
			if err != nil {
				slog.Warn("embedding degraded to no vector", "error", err)
				return nil
			}
			out[i] = vec
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// SimilarVectors applies the threshold to the cosine of two vectors from
// Vectors. A nil or mismatched vector never matches.
func (s *Scorer) SimilarVectors(a, b []float64) bool {
	if a == nil || b == nil {
		return false
	}
	score, err := Cosine(a, b)
	if err != nil {
		return false
	}
	return meetsThreshold(clamp(score), s.threshold)
}

func (s *Scorer) similarity(ctx context.Context, a, b string) (float64, error) {
	if s.embedder == nil {
		return 0, errors.New("no embedder configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	va, err := s.embedder.Embed(ctx, a)
	if err != nil {
		return 0, fmt.Errorf("embed answer: %w", err)
	}
	vb, err := s.embedder.Embed(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("embed reference: %w", err)
	}
	return Cosine(va, vb)
}

func meetsThreshold(score, threshold float64) bool {
	return score >= threshold
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
