// Package chunking turns extracted document text into the deterministic
// chunk sequence both indexes consume. The chunk count it reports is the
// count the caller persists, so the split must be a pure function of
// (text, parameters, document type).
package chunking

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	// Target chunk size in tokens with a 50-token overlap between
	// neighboring chunks.
	ChunkSize    = 512
	ChunkOverlap = 50
)

// Chunk is one bounded span of source text. ID is assigned by the caller
// once the owning document's fingerprint is known.
type Chunk struct {
	Index int
	Text  string
}

// Pipeline is an ordered list of text transforms selected per document
// type. Markdown gets a structure-aware pass before the token splitter;
// everything else goes straight to the token splitter.
type Pipeline struct {
	name   string
	stages []textsplitter.TextSplitter
}

// SelectorFor picks the splitting pipeline for a file extension. The
// extension is expected lower-cased with its leading dot (".md").
func SelectorFor(ext string) *Pipeline {
	ext = strings.ToLower(strings.TrimSpace(ext))

	token := textsplitter.NewTokenSplitter(
		textsplitter.WithChunkSize(ChunkSize),
		textsplitter.WithChunkOverlap(ChunkOverlap),
	)

	if ext == ".md" {
		markdown := textsplitter.NewMarkdownTextSplitter(
			textsplitter.WithChunkSize(ChunkSize),
			textsplitter.WithChunkOverlap(ChunkOverlap),
		)
		return &Pipeline{name: "markdown+token", stages: []textsplitter.TextSplitter{markdown, token}}
	}
	return &Pipeline{name: "token", stages: []textsplitter.TextSplitter{token}}
}

func (p *Pipeline) Name() string { return p.name }

// Split runs the text through every stage in order. Each stage splits the
// pieces produced by the previous one, so the final sequence respects both
// the structural and the size constraints. Empty pieces are dropped.
func (p *Pipeline) Split(text string) ([]Chunk, error) {
	pieces := []string{text}
	for _, stage := range p.stages {
		var next []string
		for _, piece := range pieces {
			split, err := stage.SplitText(piece)
			if err != nil {
				return nil, fmt.Errorf("chunking: split text: %w", err)
			}
			next = append(next, split...)
		}
		pieces = next
	}

	chunks := make([]Chunk, 0, len(pieces))
	for _, piece := range pieces {
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Text: trimmed})
	}
	return chunks, nil
}
