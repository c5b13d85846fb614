package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/graphrag-backend/internal/chunking"
	"github.com/yungbote/graphrag-backend/internal/extract"
	"github.com/yungbote/graphrag-backend/internal/platform/apierr"
	"github.com/yungbote/graphrag-backend/internal/platform/envutil"
	"github.com/yungbote/graphrag-backend/internal/platform/graphstore"
	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/platform/openai"
	"github.com/yungbote/graphrag-backend/internal/platform/s3store"
	"github.com/yungbote/graphrag-backend/internal/platform/storeerr"
	"github.com/yungbote/graphrag-backend/internal/platform/vectorstore"
	"github.com/yungbote/graphrag-backend/internal/repos"
	"github.com/yungbote/graphrag-backend/internal/tenant"
	"github.com/yungbote/graphrag-backend/internal/types"
)

// IngestResult is the upload contract: the object key the content landed
// under, how many chunks the split produced, and whether this exact
// content had already been ingested by the same user and tenant.
type IngestResult struct {
	S3Key            string `json:"s3_key"`
	ChunksCreated    int    `json:"chunks_created"`
	AlreadyProcessed bool   `json:"already_processed"`
}

type IngestionService interface {
	Ingest(ctx context.Context, userID, tenantID, fileName string, content []byte, contentType string) (*IngestResult, *apierr.Error)
}

type ingestionService struct {
	log          *logger.Logger
	graph        graphstore.Store
	vectors      vectorstore.Backend
	ai           openai.Client
	bucket       s3store.BucketService
	docs         repos.DocumentRepo
	extractGraph bool
	maxAttempts  int
}

func NewIngestionService(
	log *logger.Logger,
	graph graphstore.Store,
	vectors vectorstore.Backend,
	ai openai.Client,
	bucket s3store.BucketService,
	docs repos.DocumentRepo,
) (IngestionService, error) {
	if log == nil || graph == nil || vectors == nil || ai == nil || bucket == nil || docs == nil {
		return nil, fmt.Errorf("ingestion service: missing dependency")
	}
	return &ingestionService{
		log:          log.With("service", "IngestionService"),
		graph:        graph,
		vectors:      vectors,
		ai:           ai,
		bucket:       bucket,
		docs:         docs,
		extractGraph: envutil.Bool("GRAPH_EXTRACTION_ENABLED", true),
		maxAttempts:  envutil.Int("INGEST_STORE_MAX_ATTEMPTS", 3),
	}, nil
}

func (s *ingestionService) Ingest(ctx context.Context, userID, tenantID, fileName string, content []byte, contentType string) (*IngestResult, *apierr.Error) {
	userID = strings.TrimSpace(userID)
	tenantID = strings.TrimSpace(tenantID)
	fileName = path.Base(strings.TrimSpace(fileName))

	if userID == "" || tenantID == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_identity", fmt.Errorf("user_id and tenant_id are required"))
	}
	if fileName == "" || fileName == "." {
		return nil, apierr.New(http.StatusBadRequest, "missing_file_name", fmt.Errorf("file name is required"))
	}
	if len(content) == 0 {
		return nil, apierr.New(http.StatusBadRequest, "empty_file", fmt.Errorf("file %q is empty", fileName))
	}
	if !extract.IsSupported(fileName) {
		return nil, apierr.New(http.StatusBadRequest, "unsupported_file_type",
			fmt.Errorf("unsupported file type %q; supported: %s", path.Ext(fileName), strings.Join(extract.SupportedExtensions, ", ")))
	}

	fingerprint := tenant.Fingerprint(userID, tenantID, content)

	existing, err := s.docs.GetByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "dedup_lookup_failed", fmt.Errorf("ingest: fingerprint lookup: %w", err))
	}
	if existing != nil {
		s.log.Info("Skipping already-ingested document",
			"user_id", userID,
			"file_name", fileName,
			"s3_key", existing.StoragePath,
		)
		return &IngestResult{S3Key: existing.StoragePath, ChunksCreated: 0, AlreadyProcessed: true}, nil
	}

	s3Key := fmt.Sprintf("documents/%s/%s/%s", userID, fingerprint[:16], fileName)

	if err := s.bucket.Upload(ctx, s3Key, content, contentType); err != nil {
		return nil, apierr.New(http.StatusBadGateway, "upload_failed", fmt.Errorf("ingest: upload %s: %w", s3Key, err))
	}

	result, aerr := s.buildIndexes(ctx, userID, tenantID, fileName, s3Key, fingerprint, content, contentType)
	if aerr != nil {
		// The object is only reachable through a DocumentRecord, and
		// none was written. Remove it so a retry starts clean.
		s.compensate(ctx, s3Key, fingerprint, tenantID)
		return nil, aerr
	}
	return result, nil
}

func (s *ingestionService) buildIndexes(ctx context.Context, userID, tenantID, fileName, s3Key, fingerprint string, content []byte, contentType string) (*IngestResult, *apierr.Error) {
	text, err := extract.Text(fileName, content)
	if err != nil {
		return nil, apierr.New(http.StatusUnprocessableEntity, "extract_failed", fmt.Errorf("ingest: extract %s: %w", fileName, err))
	}

	pipeline := chunking.SelectorFor(path.Ext(fileName))
	chunks, err := pipeline.Split(text)
	if err != nil {
		return nil, apierr.New(http.StatusUnprocessableEntity, "chunking_failed", fmt.Errorf("ingest: chunk %s: %w", fileName, err))
	}
	if len(chunks) == 0 {
		return nil, apierr.New(http.StatusUnprocessableEntity, "empty_document", fmt.Errorf("ingest: %s produced no indexable text", fileName))
	}

	tenantKey := tenant.DeriveKey(tenantID)
	graph := graphstore.WithTenant(s.graph, tenantKey)
	index := vectorstore.WithTenant(s.vectors, tenantKey).GetIndex(chunkIndexName)

	if err := s.buildGraph(ctx, graph, userID, fileName, fingerprint, chunks); err != nil {
		return nil, apierr.New(http.StatusBadGateway, "graph_build_failed", fmt.Errorf("ingest: graph build %s: %w", fileName, err))
	}
	if err := s.buildVectors(ctx, index, fileName, fingerprint, chunks); err != nil {
		return nil, apierr.New(http.StatusBadGateway, "vector_build_failed", fmt.Errorf("ingest: vector build %s: %w", fileName, err))
	}

	extra, _ := json.Marshal(map[string]any{
		"pipeline":     pipeline.Name(),
		"content_type": contentType,
	})

	record := &types.DocumentRecord{
		ID:            uuid.New(),
		UserID:        userID,
		TenantID:      tenantID,
		StoragePath:   s3Key,
		FileName:      fileName,
		SizeBytes:     int64(len(content)),
		Fingerprint:   fingerprint,
		UploadedAt:    time.Now().UTC(),
		ChunksCreated: len(chunks),
		Status:        types.DocumentStatusCompleted,
		Extra:         datatypes.JSON(extra),
	}
	if err := s.docs.Create(ctx, record); err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "record_write_failed", fmt.Errorf("ingest: persist record %s: %w", fileName, err))
	}

	s.log.Info("Document ingested",
		"user_id", userID,
		"file_name", fileName,
		"s3_key", s3Key,
		"chunks_created", len(chunks),
		"pipeline", pipeline.Name(),
	)
	return &IngestResult{S3Key: s3Key, ChunksCreated: len(chunks)}, nil
}

func (s *ingestionService) buildGraph(ctx context.Context, graph graphstore.Store, userID, fileName, sourceID string, chunks []chunking.Chunk) error {
	if err := s.withRetry(ctx, func() error {
		_, err := graph.ExecuteQuery(ctx, cypherMergeSource, map[string]any{
			"source_id": sourceID,
			"file_name": fileName,
			"user_id":   userID,
		})
		return err
	}); err != nil {
		return fmt.Errorf("merge source: %w", err)
	}

	for _, ch := range chunks {
		chunkID := chunkID(sourceID, ch.Index)
		if err := s.withRetry(ctx, func() error {
			_, err := graph.ExecuteQuery(ctx, cypherCreateChunk, map[string]any{
				"source_id": sourceID,
				"chunk_id":  chunkID,
				"value":     ch.Text,
				"index":     ch.Index,
			})
			return err
		}); err != nil {
			return fmt.Errorf("create chunk %d: %w", ch.Index, err)
		}

		if !s.extractGraph {
			continue
		}
		if err := s.extractAndAttach(ctx, graph, chunkID, ch.Text); err != nil {
			return fmt.Errorf("extract chunk %d: %w", ch.Index, err)
		}
	}
	return nil
}

func (s *ingestionService) extractAndAttach(ctx context.Context, graph graphstore.Store, chunkID, text string) error {
	var extraction graphExtraction
	if err := s.ai.GenerateJSON(ctx, extractionSystemPrompt, fmt.Sprintf(extractionUserPromptFmt, text), &extraction); err != nil {
		return fmt.Errorf("generate extraction: %w", err)
	}

	for _, topic := range extraction.Topics {
		name := strings.TrimSpace(topic.Topic)
		if name == "" {
			continue
		}
		for _, st := range topic.Statements {
			stmt := strings.TrimSpace(st.Statement)
			if stmt == "" {
				continue
			}
			facts := make([]map[string]any, 0, len(st.Facts))
			for _, f := range st.Facts {
				f = strings.TrimSpace(f)
				if f == "" {
					continue
				}
				facts = append(facts, map[string]any{"id": uuid.NewString(), "text": f})
			}
			if err := s.withRetry(ctx, func() error {
				_, err := graph.ExecuteQuery(ctx, cypherAttachStatement, map[string]any{
					"chunk_id":     chunkID,
					"topic":        name,
					"statement_id": uuid.NewString(),
					"statement":    stmt,
					"facts":        facts,
				})
				return err
			}); err != nil {
				return fmt.Errorf("attach statement: %w", err)
			}
		}
	}
	return nil
}

func (s *ingestionService) buildVectors(ctx context.Context, index vectorstore.Index, fileName, sourceID string, chunks []chunking.Chunk) error {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := s.ai.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	items := make([]vectorstore.Item, len(chunks))
	for i, ch := range chunks {
		items[i] = vectorstore.Item{
			ID:     chunkID(sourceID, ch.Index),
			Values: vectors[i],
			Metadata: map[string]any{
				"source_id":   sourceID,
				"file_name":   fileName,
				"chunk_index": ch.Index,
			},
		}
	}

	return s.withRetry(ctx, func() error { return index.Upsert(ctx, items) })
}

// compensate unwinds a partially-built ingestion: the uploaded object and
// any subgraph written before the failure. Both are best effort; failures
// are logged, not returned, because the original error is what the caller
// needs to see.
func (s *ingestionService) compensate(ctx context.Context, s3Key, sourceID, tenantID string) {
	if err := s.bucket.Delete(ctx, s3Key); err != nil {
		s.log.Warn("Compensating object delete failed", "s3_key", s3Key, "error", err.Error())
	}
	graph := graphstore.WithTenant(s.graph, tenant.DeriveKey(tenantID))
	if _, err := graph.ExecuteQuery(ctx, cypherDeleteSource, map[string]any{"source_id": sourceID}); err != nil {
		s.log.Warn("Compensating graph delete failed", "source_id", sourceID, "error", err.Error())
	}
}

func (s *ingestionService) withRetry(ctx context.Context, fn func() error) error {
	backoff := 500 * time.Millisecond
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !storeerr.IsRetryable(err) || attempt == s.maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// chunkID derives the shared id both indexes use for one chunk, so vector
// matches resolve directly to graph nodes.
func chunkID(sourceID string, index int) string {
	return fmt.Sprintf("%s:%d", sourceID, index)
}
