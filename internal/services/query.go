package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/graphrag-backend/internal/platform/apierr"
	"github.com/yungbote/graphrag-backend/internal/platform/envutil"
	"github.com/yungbote/graphrag-backend/internal/platform/graphstore"
	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/platform/openai"
	"github.com/yungbote/graphrag-backend/internal/platform/vectorstore"
	"github.com/yungbote/graphrag-backend/internal/tenant"
)

// chunkPreviewLimit caps the text echoed back per retrieved chunk.
const chunkPreviewLimit = 500

const noResultsAnswer = "I could not find any relevant information for this question in the indexed documents."

// ChunkPreview is one retrieved chunk as shown to the UI: truncated text
// plus the full length so the truncation is visible.
type ChunkPreview struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	CharCount int     `json:"charCount"`
	Source    string  `json:"source"`
	Score     float64 `json:"score"`
}

// DualQueryResult carries both paths' answers side by side, with the
// evidence and wall time each one used.
type DualQueryResult struct {
	VectorResponse   string         `json:"vector_response"`
	GraphRAGResponse string         `json:"graphrag_response"`
	VectorSources    []string       `json:"vector_sources"`
	GraphRAGSources  []string       `json:"graphrag_sources"`
	VectorChunks     []ChunkPreview `json:"vector_chunks"`
	GraphNodes       []GraphNode    `json:"graphrag_graph_nodes"`
	GraphLinks       []GraphLink    `json:"graphrag_graph_links"`
	VectorTimeMS     float64        `json:"vector_time_ms"`
	GraphRAGTimeMS   float64        `json:"graphrag_time_ms"`
}

type QueryService interface {
	Query(ctx context.Context, tenantID, question string, topK int) (*DualQueryResult, *apierr.Error)
}

type queryService struct {
	log         *logger.Logger
	graph       graphstore.Store
	vectors     vectorstore.Backend
	ai          openai.Client
	defaultTopK int
}

func NewQueryService(
	log *logger.Logger,
	graph graphstore.Store,
	vectors vectorstore.Backend,
	ai openai.Client,
) (QueryService, error) {
	if log == nil || graph == nil || vectors == nil || ai == nil {
		return nil, fmt.Errorf("query service: missing dependency")
	}
	return &queryService{
		log:         log.With("service", "QueryService"),
		graph:       graph,
		vectors:     vectors,
		ai:          ai,
		defaultTopK: envutil.Int("QUERY_TOP_K", 5),
	}, nil
}

// Query runs the vector path and the graph path concurrently over the
// same question and reports both answers. The question is embedded once
// up front so neither path's timing carries the shared embedding cost.
func (s *queryService) Query(ctx context.Context, tenantID, question string, topK int) (*DualQueryResult, *apierr.Error) {
	tenantID = strings.TrimSpace(tenantID)
	question = strings.TrimSpace(question)
	if tenantID == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_identity", fmt.Errorf("tenant_id is required"))
	}
	if question == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_question", fmt.Errorf("question is required"))
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}

	vecs, err := s.ai.Embed(ctx, []string{question})
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "embed_failed", fmt.Errorf("query: embed question: %w", err))
	}
	qvec := vecs[0]

	tenantKey := tenant.DeriveKey(tenantID)
	graph := graphstore.WithTenant(s.graph, tenantKey)
	// Reads only on this path; the read-only wrapper makes a slipped-in
	// write fail loudly instead of silently mutating the index.
	index := vectorstore.ReadOnly(vectorstore.WithTenant(s.vectors, tenantKey)).GetIndex(chunkIndexName)

	result := &DualQueryResult{
		VectorSources:   []string{},
		GraphRAGSources: []string{},
		VectorChunks:    []ChunkPreview{},
		GraphNodes:      []GraphNode{},
		GraphLinks:      []GraphLink{},
	}

	// The paths fail independently: one path's error becomes that path's
	// answer text and never cancels or masks the other. Only validation
	// and the shared embedding above abort the request.
	var g errgroup.Group

	g.Go(func() error {
		start := time.Now()
		answer, sources, previews, err := s.vectorPath(ctx, graph, index, question, qvec, topK)
		result.VectorTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
		if err != nil {
			s.log.Warn("Vector path failed", "error", err.Error())
			result.VectorResponse = fmt.Sprintf("Vector search failed: %v", err)
			return nil
		}
		result.VectorResponse = answer
		result.VectorSources = sources
		result.VectorChunks = previews
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		answer, sources, viz, err := s.graphPath(ctx, graph, index, question, qvec, topK)
		result.GraphRAGTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
		if err != nil {
			s.log.Warn("Graph path failed", "error", err.Error())
			result.GraphRAGResponse = fmt.Sprintf("Graph search failed: %v", err)
			return nil
		}
		result.GraphRAGResponse = answer
		result.GraphRAGSources = sources
		result.GraphNodes = viz.Nodes
		result.GraphLinks = viz.Links
		return nil
	})

	g.Wait()

	s.log.Info("Query answered",
		"top_k", topK,
		"vector_chunks", len(result.VectorChunks),
		"graph_nodes", len(result.GraphNodes),
		"vector_time_ms", result.VectorTimeMS,
		"graphrag_time_ms", result.GraphRAGTimeMS,
	)
	return result, nil
}

// vectorPath retrieves the nearest chunks, resolves their text and source
// through the graph, and answers with a single completion over the
// assembled context.
func (s *queryService) vectorPath(ctx context.Context, graph graphstore.Store, index vectorstore.Index, question string, qvec []float32, topK int) (string, []string, []ChunkPreview, error) {
	matches, err := index.TopK(ctx, qvec, topK)
	if err != nil {
		return "", nil, nil, fmt.Errorf("top-k: %w", err)
	}
	if len(matches) == 0 {
		return noResultsAnswer, []string{}, []ChunkPreview{}, nil
	}

	chunkIDs := make([]any, len(matches))
	for i, m := range matches {
		chunkIDs[i] = m.ID
	}
	rows, err := graph.ExecuteQuery(ctx, cypherResolveChunks, map[string]any{"chunk_ids": chunkIDs})
	if err != nil {
		return "", nil, nil, fmt.Errorf("resolve chunks: %w", err)
	}

	type resolved struct {
		text   string
		source Source
	}
	byID := make(map[string]resolved, len(rows))
	for _, row := range rows {
		id := stringValue(row["chunk_id"])
		if id == "" {
			continue
		}
		byID[id] = resolved{
			text: stringValue(row["text"]),
			source: StructuredSource(stringValue(row["source_id"]), map[string]any{
				"file_name": stringValue(row["file_name"]),
			}),
		}
	}

	var contextParts []string
	var sources []string
	seenSources := map[string]bool{}
	previews := make([]ChunkPreview, 0, len(matches))

	for _, m := range matches {
		res, ok := byID[m.ID]
		if !ok {
			// Vector hit with no graph node: the document was removed
			// after indexing. Fall back to payload metadata for the
			// name and skip the missing text.
			res.source = sourceFromValue(m.Metadata)
		}
		name := res.source.DisplayName()
		if res.text != "" {
			contextParts = append(contextParts, fmt.Sprintf("Source: %s\n%s", name, res.text))
		}
		if !seenSources[name] {
			seenSources[name] = true
			sources = append(sources, name)
		}
		previews = append(previews, ChunkPreview{
			ID:        m.ID,
			Text:      truncateName(res.text, chunkPreviewLimit),
			CharCount: len(res.text),
			Source:    name,
			Score:     m.Score,
		})
	}

	if len(contextParts) == 0 {
		return noResultsAnswer, sources, previews, nil
	}

	answer, err := s.ai.GenerateText(ctx, answerSystemPrompt,
		fmt.Sprintf(answerUserPromptFmt, question, strings.Join(contextParts, "\n\n")))
	if err != nil {
		return "", nil, nil, fmt.Errorf("generate answer: %w", err)
	}
	return answer, sources, previews, nil
}

// graphPath seeds the traversal with the same nearest chunks, expands
// their topic, statement and fact neighborhood, and synthesizes an answer
// from the traversed material.
func (s *queryService) graphPath(ctx context.Context, graph graphstore.Store, index vectorstore.Index, question string, qvec []float32, topK int) (string, []string, Graph, error) {
	empty := Graph{Nodes: []GraphNode{}, Links: []GraphLink{}}

	matches, err := index.TopK(ctx, qvec, topK)
	if err != nil {
		return "", nil, empty, fmt.Errorf("top-k seeds: %w", err)
	}
	if len(matches) == 0 {
		return noResultsAnswer, []string{}, empty, nil
	}

	chunkIDs := make([]any, len(matches))
	for i, m := range matches {
		chunkIDs[i] = m.ID
	}
	rows, err := graph.ExecuteQuery(ctx, cypherTraverseProvenance, map[string]any{"chunk_ids": chunkIDs})
	if err != nil {
		return "", nil, empty, fmt.Errorf("traverse: %w", err)
	}

	sources := provenanceFromRows(rows)
	if len(sources) == 0 {
		return noResultsAnswer, []string{}, empty, nil
	}

	var names []string
	var contextParts []string
	for _, src := range sources {
		name := src.FileName
		if name == "" {
			name = src.SourceID
		}
		names = append(names, name)

		var b strings.Builder
		fmt.Fprintf(&b, "Source: %s\n", name)
		for _, topic := range src.Topics {
			fmt.Fprintf(&b, "- Topic: %s\n", topic.Topic)
			for _, st := range topic.Statements {
				fmt.Fprintf(&b, "  Statement: %s\n", st.Statement)
				for _, fact := range st.Facts {
					fmt.Fprintf(&b, "    Fact: %s\n", fact)
				}
			}
		}
		contextParts = append(contextParts, b.String())
	}

	answer, err := s.ai.GenerateText(ctx, synthesisSystemPrompt,
		fmt.Sprintf(synthesisUserPromptFmt, question, strings.Join(contextParts, "\n")))
	if err != nil {
		return "", nil, empty, fmt.Errorf("synthesize: %w", err)
	}
	return answer, names, GraphFromProvenance(sources), nil
}

// provenanceFromRows groups flat traversal rows into per-source trees,
// preserving first-seen order at every level.
func provenanceFromRows(rows []map[string]any) []ProvenanceSource {
	var order []string
	bySource := map[string]*ProvenanceSource{}
	topicIdx := map[string]map[string]int{}

	for _, row := range rows {
		sourceID := stringValue(row["source_id"])
		if sourceID == "" {
			continue
		}
		src, ok := bySource[sourceID]
		if !ok {
			src = &ProvenanceSource{SourceID: sourceID, FileName: stringValue(row["file_name"])}
			bySource[sourceID] = src
			topicIdx[sourceID] = map[string]int{}
			order = append(order, sourceID)
		}

		topicName := stringValue(row["topic"])
		if topicName == "" {
			continue
		}
		idx, ok := topicIdx[sourceID][topicName]
		if !ok {
			idx = len(src.Topics)
			src.Topics = append(src.Topics, ProvenanceTopic{Topic: topicName})
			topicIdx[sourceID][topicName] = idx
		}

		statement := stringValue(row["statement"])
		if statement == "" {
			continue
		}
		var facts []string
		for _, f := range stringsValue(row["facts"]) {
			if f = strings.TrimSpace(f); f != "" {
				facts = append(facts, f)
			}
		}
		src.Topics[idx].Statements = append(src.Topics[idx].Statements, ProvenanceStatement{
			Statement: statement,
			Facts:     facts,
		})
	}

	out := make([]ProvenanceSource, 0, len(order))
	for _, id := range order {
		out = append(out, *bySource[id])
	}
	return out
}
