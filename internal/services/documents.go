package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/graphrag-backend/internal/platform/apierr"
	"github.com/yungbote/graphrag-backend/internal/platform/graphstore"
	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/platform/s3store"
	"github.com/yungbote/graphrag-backend/internal/repos"
	"github.com/yungbote/graphrag-backend/internal/tenant"
	"github.com/yungbote/graphrag-backend/internal/types"
)

// DocumentService lists and removes ingested documents. A delete removes
// the stored object, the metadata record and the document's subgraph;
// its chunk vectors stay behind until the next reset and resolve to
// nothing on retrieval, which the query paths tolerate.
type DocumentService interface {
	List(ctx context.Context, userID string) ([]*types.DocumentRecord, *apierr.Error)
	Delete(ctx context.Context, userID, tenantID, s3Key string) *apierr.Error
}

type documentService struct {
	log    *logger.Logger
	graph  graphstore.Store
	bucket s3store.BucketService
	docs   repos.DocumentRepo
}

func NewDocumentService(
	log *logger.Logger,
	graph graphstore.Store,
	bucket s3store.BucketService,
	docs repos.DocumentRepo,
) (DocumentService, error) {
	if log == nil || graph == nil || bucket == nil || docs == nil {
		return nil, fmt.Errorf("document service: missing dependency")
	}
	return &documentService{
		log:    log.With("service", "DocumentService"),
		graph:  graph,
		bucket: bucket,
		docs:   docs,
	}, nil
}

func (s *documentService) List(ctx context.Context, userID string) ([]*types.DocumentRecord, *apierr.Error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_identity", fmt.Errorf("user_id is required"))
	}
	records, err := s.docs.ListByUser(ctx, userID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "record_list_failed", fmt.Errorf("documents: list: %w", err))
	}
	if records == nil {
		records = []*types.DocumentRecord{}
	}
	return records, nil
}

func (s *documentService) Delete(ctx context.Context, userID, tenantID, s3Key string) *apierr.Error {
	userID = strings.TrimSpace(userID)
	tenantID = strings.TrimSpace(tenantID)
	s3Key = strings.TrimSpace(s3Key)
	if userID == "" {
		return apierr.New(http.StatusBadRequest, "missing_identity", fmt.Errorf("user_id is required"))
	}
	if s3Key == "" {
		return apierr.New(http.StatusBadRequest, "missing_s3_key", fmt.Errorf("s3_key is required"))
	}

	record, err := s.docs.GetByUserAndPath(ctx, userID, s3Key)
	if err != nil {
		return apierr.New(http.StatusInternalServerError, "record_lookup_failed", fmt.Errorf("documents: lookup %s: %w", s3Key, err))
	}
	if record == nil {
		return apierr.New(http.StatusNotFound, "document_not_found", fmt.Errorf("documents: no record for %s", s3Key))
	}
	// Callers on the query-parameter form send no tenant; the record
	// remembers which tenant the document was ingested under.
	if tenantID == "" {
		tenantID = record.TenantID
	}

	graph := graphstore.WithTenant(s.graph, tenant.DeriveKey(tenantID))
	if _, err := graph.ExecuteQuery(ctx, cypherDeleteSource, map[string]any{"source_id": record.Fingerprint}); err != nil {
		return apierr.New(http.StatusBadGateway, "graph_delete_failed", fmt.Errorf("documents: delete subgraph %s: %w", s3Key, err))
	}

	if err := s.bucket.Delete(ctx, s3Key); err != nil {
		s.log.Warn("Object delete failed; removing record anyway", "s3_key", s3Key, "error", err.Error())
	}

	if _, err := s.docs.DeleteByUserAndPath(ctx, userID, s3Key); err != nil {
		return apierr.New(http.StatusInternalServerError, "record_delete_failed", fmt.Errorf("documents: delete record %s: %w", s3Key, err))
	}

	s.log.Info("Document deleted", "user_id", userID, "s3_key", s3Key)
	return nil
}
