// Package document splits uploaded document text into overlapping chunks
// and samples them as generation context.
package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// separators are tried in order; the empty separator cuts between runes.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most the chunk size in runes,
// preferring paragraph, line and word boundaries. Consecutive chunks share
// up to the overlap.
type Splitter struct {
	rc textsplitter.RecursiveCharacter
}

// NewSplitter validates the chunking parameters.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{rc: textsplitter.NewRecursiveCharacter(
		textsplitter.WithSeparators(separators),
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)}, nil
}

// Split returns the non-blank chunks of text. Blank input yields no chunks.
func (s *Splitter) Split(text string) ([]string, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil, nil
	}

	chunks, err := s.rc.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting document: %w", err)
	}

	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}
