package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/graphrag-backend/internal/platform/apierr"
	"github.com/yungbote/graphrag-backend/internal/platform/envutil"
	"github.com/yungbote/graphrag-backend/internal/platform/graphstore"
	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/platform/openai"
	"github.com/yungbote/graphrag-backend/internal/platform/vectorstore"
	"github.com/yungbote/graphrag-backend/internal/tenant"
)

const cypherVisualizationRows = `
MATCH (n {tenant_key: $tenant_key})
OPTIONAL MATCH (n)-[r]->(m {tenant_key: $tenant_key})
RETURN coalesce(n.id, n.name) AS source_node_id,
       labels(n) AS source_labels,
       coalesce(n.file_name, n.name, n.text, n.value, n.id) AS source_name,
       type(r) AS rel_type,
       coalesce(m.id, m.name) AS target_node_id,
       labels(m) AS target_labels,
       coalesce(m.file_name, m.name, m.text, m.value, m.id) AS target_name
LIMIT $limit`

const cypherNodeCounts = `
MATCH (n {tenant_key: $tenant_key})
UNWIND labels(n) AS label
RETURN label, count(*) AS count
ORDER BY count DESC, label`

// NodeCount is one label's population within a tenant's subgraph.
type NodeCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// ExplorationService backs the introspection endpoints: the rendered
// tenant subgraph, per-label node counts, and raw vector retrieval
// without the answering step.
type ExplorationService interface {
	Visualization(ctx context.Context, tenantID string, limit int) (*Graph, *apierr.Error)
	NodeCounts(ctx context.Context, tenantID string) ([]NodeCount, *apierr.Error)
	VectorChunks(ctx context.Context, tenantID, query string, topK int) ([]ChunkPreview, *apierr.Error)
}

type explorationService struct {
	log          *logger.Logger
	graph        graphstore.Store
	vectors      vectorstore.Backend
	ai           openai.Client
	defaultLimit int
	maxLimit     int
}

func NewExplorationService(
	log *logger.Logger,
	graph graphstore.Store,
	vectors vectorstore.Backend,
	ai openai.Client,
) (ExplorationService, error) {
	if log == nil || graph == nil || vectors == nil || ai == nil {
		return nil, fmt.Errorf("exploration service: missing dependency")
	}
	return &explorationService{
		log:          log.With("service", "ExplorationService"),
		graph:        graph,
		vectors:      vectors,
		ai:           ai,
		defaultLimit: envutil.Int("VISUALIZATION_DEFAULT_LIMIT", 100),
		maxLimit:     envutil.Int("VISUALIZATION_MAX_LIMIT", 500),
	}, nil
}

func (s *explorationService) Visualization(ctx context.Context, tenantID string, limit int) (*Graph, *apierr.Error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_identity", fmt.Errorf("tenant_id is required"))
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	graph := graphstore.WithTenant(s.graph, tenant.DeriveKey(tenantID))
	rows, err := graph.ExecuteQuery(ctx, cypherVisualizationRows, map[string]any{"limit": limit})
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "graph_query_failed", fmt.Errorf("visualization: %w", err))
	}

	g := GraphFromRows(rows, limit)
	return &g, nil
}

func (s *explorationService) NodeCounts(ctx context.Context, tenantID string) ([]NodeCount, *apierr.Error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_identity", fmt.Errorf("tenant_id is required"))
	}

	graph := graphstore.WithTenant(s.graph, tenant.DeriveKey(tenantID))
	rows, err := graph.ExecuteQuery(ctx, cypherNodeCounts, nil)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "graph_query_failed", fmt.Errorf("node counts: %w", err))
	}

	counts := make([]NodeCount, 0, len(rows))
	for _, row := range rows {
		label := stringValue(row["label"])
		if label == "" {
			continue
		}
		count, _ := row["count"].(int64)
		counts = append(counts, NodeCount{Label: label, Count: count})
	}
	return counts, nil
}

// VectorChunks runs the vector retrieval step alone, so the UI can show
// what the answering paths would have been fed.
func (s *explorationService) VectorChunks(ctx context.Context, tenantID, query string, topK int) ([]ChunkPreview, *apierr.Error) {
	tenantID = strings.TrimSpace(tenantID)
	query = strings.TrimSpace(query)
	if tenantID == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_identity", fmt.Errorf("tenant_id is required"))
	}
	if query == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_question", fmt.Errorf("query is required"))
	}
	if topK <= 0 {
		topK = 5
	}

	vecs, err := s.ai.Embed(ctx, []string{query})
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "embed_failed", fmt.Errorf("vector chunks: embed: %w", err))
	}

	tenantKey := tenant.DeriveKey(tenantID)
	index := vectorstore.ReadOnly(vectorstore.WithTenant(s.vectors, tenantKey)).GetIndex(chunkIndexName)
	matches, err := index.TopK(ctx, vecs[0], topK)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "vector_query_failed", fmt.Errorf("vector chunks: top-k: %w", err))
	}
	if len(matches) == 0 {
		return []ChunkPreview{}, nil
	}

	chunkIDs := make([]any, len(matches))
	for i, m := range matches {
		chunkIDs[i] = m.ID
	}
	graph := graphstore.WithTenant(s.graph, tenantKey)
	rows, err := graph.ExecuteQuery(ctx, cypherResolveChunks, map[string]any{"chunk_ids": chunkIDs})
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "graph_query_failed", fmt.Errorf("vector chunks: resolve: %w", err))
	}

	texts := map[string]string{}
	names := map[string]string{}
	for _, row := range rows {
		id := stringValue(row["chunk_id"])
		texts[id] = stringValue(row["text"])
		names[id] = stringValue(row["file_name"])
	}

	previews := make([]ChunkPreview, 0, len(matches))
	for _, m := range matches {
		name := names[m.ID]
		if name == "" {
			name = sourceFromValue(m.Metadata).DisplayName()
		}
		text := texts[m.ID]
		previews = append(previews, ChunkPreview{
			ID:        m.ID,
			Text:      truncateName(text, chunkPreviewLimit),
			CharCount: len(text),
			Source:    name,
			Score:     m.Score,
		})
	}
	return previews, nil
}
