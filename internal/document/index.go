package document

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
)

// ContextSeparator joins sampled chunks in generation context.
const ContextSeparator = "\n\n---\n\n"

// DefaultContextChunks is how many chunks a generation prompt samples.
const DefaultContextChunks = 8

// dedupPrefix is how many leading runes identify a duplicate chunk.
const dedupPrefix = 80

// ErrEmptyDocument is returned when uploaded text has no content.
var ErrEmptyDocument = errors.New("document has no text")

// Index holds the chunks of the active document. Indexing a new document
// replaces the previous one.
type Index struct {
	splitter *Splitter
	chunks   []string
	mu       sync.RWMutex
}

// NewIndex creates an empty index over splitter.
func NewIndex(splitter *Splitter) *Index {
	return &Index{splitter: splitter}
}

// Replace splits text and makes it the active document. It returns the
// number of chunks kept.
func (ix *Index) Replace(text string) (int, error) {
	chunks, err := ix.splitter.Split(text)
	if err != nil {
		return 0, err
	}
	chunks = dedupe(chunks)
	if len(chunks) == 0 {
		return 0, ErrEmptyDocument
	}

	ix.mu.Lock()
	ix.chunks = chunks
	ix.mu.Unlock()
	return len(chunks), nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// RandomContext samples up to k distinct chunks in random order and joins
// them. An empty index returns "".
func (ix *Index) RandomContext(k int) string {
	ix.mu.RLock()
	chunks := ix.chunks
	ix.mu.RUnlock()

	if len(chunks) == 0 || k <= 0 {
		return ""
	}

	perm := rand.Perm(len(chunks))
	sampled := make([]string, 0, min(k, len(chunks)))
	for _, i := range perm[:cap(sampled)] {
		sampled = append(sampled, chunks[i])
	}
	return strings.Join(sampled, ContextSeparator)
}

func dedupe(chunks []string) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := chunks[:0]
	for _, c := range chunks {
		key := c
		if r := []rune(c); len(r) > dedupPrefix {
			key = string(r[:dedupPrefix])
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
