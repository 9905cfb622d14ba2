package document

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func newTestIndex(t *testing.T, size int) *Index {
	t.Helper()
	s, err := NewSplitter(size, 0)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	return NewIndex(s)
}

func TestIndex_EmptyReturnsNoContext(t *testing.T) {
	ix := newTestIndex(t, 30)
	if got := ix.RandomContext(DefaultContextChunks); got != "" {
		t.Errorf("RandomContext() = %q, want empty", got)
	}
}

func TestIndex_ReplaceRejectsBlank(t *testing.T) {
	ix := newTestIndex(t, 30)
	if _, err := ix.Replace("   "); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("Replace(blank) error = %v, want ErrEmptyDocument", err)
	}
}

func TestIndex_ReplaceSwapsDocument(t *testing.T) {
	ix := newTestIndex(t, 30)

	if _, err := ix.Replace("Old paragraph about rocks."); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	n, err := ix.Replace("New paragraph about cells.\n\nAnother about tissues.")
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if n != 2 || ix.Len() != 2 {
		t.Fatalf("chunks = %d, Len() = %d, want 2", n, ix.Len())
	}
	if got := ix.RandomContext(10); strings.Contains(got, "rocks") {
		t.Errorf("RandomContext() still contains the old document: %q", got)
	}
}

func TestIndex_RandomContextSamplesDistinctChunks(t *testing.T) {
	ix := newTestIndex(t, 30)
	var paras []string
	for i := range 10 {
		paras = append(paras, fmt.Sprintf("Paragraph number %d.", i))
	}
	if _, err := ix.Replace(strings.Join(paras, "\n\n")); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got := strings.Split(ix.RandomContext(4), ContextSeparator)
	if len(got) != 4 {
		t.Fatalf("sampled %d chunks, want 4", len(got))
	}
	seen := map[string]bool{}
	for _, c := range got {
		if seen[c] {
			t.Errorf("chunk %q sampled twice", c)
		}
		seen[c] = true
	}

	all := strings.Split(ix.RandomContext(50), ContextSeparator)
	if len(all) != 10 {
		t.Errorf("RandomContext(50) sampled %d chunks, want all 10", len(all))
	}
}

func TestIndex_DropsDuplicateChunks(t *testing.T) {
	ix := newTestIndex(t, 20)
	n, err := ix.Replace("Same text.\n\nSame text.\n\nDifferent text.")
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if n != 2 {
		t.Errorf("chunks = %d, want 2", n)
	}
}

func TestIndex_ConcurrentAccess(t *testing.T) {
	ix := newTestIndex(t, 20)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = ix.Replace(fmt.Sprintf("Document %d.\n\nSecond part.", i))
		}()
		go func() {
			defer wg.Done()
			_ = ix.RandomContext(2)
		}()
	}
	wg.Wait()
	if ix.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ix.Len())
	}
}
