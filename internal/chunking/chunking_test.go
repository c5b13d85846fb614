package chunking

import (
	"strings"
	"testing"
)

func TestSelectorForPicksMarkdownPipeline(t *testing.T) {
	if got := SelectorFor(".md").Name(); got != "markdown+token" {
		t.Fatalf("pipeline for .md = %q, want markdown+token", got)
	}
	if got := SelectorFor(".MD").Name(); got != "markdown+token" {
		t.Fatalf("pipeline for .MD = %q, want markdown+token", got)
	}
	for _, ext := range []string{".txt", ".pdf", ""} {
		if got := SelectorFor(ext).Name(); got != "token" {
			t.Fatalf("pipeline for %q = %q, want token", ext, got)
		}
	}
}

func TestSplitShortText(t *testing.T) {
	chunks, err := SelectorFor(".txt").Split("a short paragraph of text")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Index != 0 {
		t.Fatalf("index = %d, want 0", chunks[0].Index)
	}
	if chunks[0].Text != "a short paragraph of text" {
		t.Fatalf("text = %q", chunks[0].Text)
	}
}

func TestSplitBlankText(t *testing.T) {
	chunks, err := SelectorFor(".txt").Split("   \n\t  ")
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("chunks = %d, want 0", len(chunks))
	}
}

func TestSplitDeterministicAndIndexed(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 400)

	first, err := SelectorFor(".txt").Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	second, err := SelectorFor(".txt").Split(text)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	if len(first) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(first))
	}
	if len(first) != len(second) {
		t.Fatalf("same input split into %d then %d chunks", len(first), len(second))
	}
	for i := range first {
		if first[i].Index != i {
			t.Fatalf("chunk %d has index %d", i, first[i].Index)
		}
		if first[i].Text != second[i].Text {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}
