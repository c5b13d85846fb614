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
	"github.com/yungbote/graphrag-backend/internal/platform/vectorstore"
	"github.com/yungbote/graphrag-backend/internal/repos"
	"github.com/yungbote/graphrag-backend/internal/tenant"
)

// The clear ladder, least to most drastic. The bulk form and the filtered
// form are equivalent on a healthy server; the filtered form survives
// property-index trouble the bulk form can hit. The unscoped form wipes
// every tenant and only runs when both scoped forms failed.
const (
	cypherClearTenantBulk = `
MATCH (n {tenant_key: $tenant_key})
DETACH DELETE n
RETURN count(*) AS deleted`

	cypherClearTenantFiltered = `
MATCH (n)
WHERE n.tenant_key = $tenant_key
DETACH DELETE n
RETURN count(*) AS deleted`

	cypherClearUnscoped = `
MATCH (n)
DETACH DELETE n
RETURN count(*) AS deleted`
)

// ResetResult reports what one reset actually removed. A repeat reset
// returns zeros.
type ResetResult struct {
	GraphNodesDeleted int64 `json:"graph_nodes_deleted"`
	VectorsCleared    bool  `json:"vectors_cleared"`
	ObjectsDeleted    int   `json:"objects_deleted"`
	RecordsDeleted    int   `json:"records_deleted"`
}

type ResetService interface {
	Reset(ctx context.Context, userID, tenantID string) (*ResetResult, *apierr.Error)
}

type resetService struct {
	log     *logger.Logger
	graph   graphstore.Store
	vectors vectorstore.Backend
	bucket  s3store.BucketService
	docs    repos.DocumentRepo
}

func NewResetService(
	log *logger.Logger,
	graph graphstore.Store,
	vectors vectorstore.Backend,
	bucket s3store.BucketService,
	docs repos.DocumentRepo,
) (ResetService, error) {
	if log == nil || graph == nil || vectors == nil || bucket == nil || docs == nil {
		return nil, fmt.Errorf("reset service: missing dependency")
	}
	return &resetService{
		log:     log.With("service", "ResetService"),
		graph:   graph,
		vectors: vectors,
		bucket:  bucket,
		docs:    docs,
	}, nil
}

// Reset clears the tenant's graph and vector namespace, then removes the
// user's stored objects and metadata records one by one. Object deletions
// are independent: one failure is logged and the sweep continues, and a
// record is removed even when its object delete failed so a rerun does
// not resurrect it.
func (s *resetService) Reset(ctx context.Context, userID, tenantID string) (*ResetResult, *apierr.Error) {
	userID = strings.TrimSpace(userID)
	tenantID = strings.TrimSpace(tenantID)
	if userID == "" || tenantID == "" {
		return nil, apierr.New(http.StatusBadRequest, "missing_identity", fmt.Errorf("user_id and tenant_id are required"))
	}

	tenantKey := tenant.DeriveKey(tenantID)
	result := &ResetResult{}

	deleted, err := s.clearGraph(ctx, tenantKey)
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "graph_reset_failed", fmt.Errorf("reset: clear graph: %w", err))
	}
	result.GraphNodesDeleted = deleted

	if err := vectorstore.WithTenant(s.vectors, tenantKey).DeleteAll(ctx); err != nil {
		return nil, apierr.New(http.StatusBadGateway, "vector_reset_failed", fmt.Errorf("reset: clear vectors: %w", err))
	}
	result.VectorsCleared = true

	records, err := s.docs.ListByUser(ctx, userID)
	if err != nil {
		return nil, apierr.New(http.StatusInternalServerError, "record_list_failed", fmt.Errorf("reset: list records: %w", err))
	}

	for _, record := range records {
		if record.TenantID != tenantID {
			continue
		}
		if err := s.bucket.Delete(ctx, record.StoragePath); err != nil {
			s.log.Warn("Reset object delete failed; continuing",
				"s3_key", record.StoragePath,
				"error", err.Error(),
			)
		} else {
			result.ObjectsDeleted++
		}

		affected, err := s.docs.DeleteByUserAndPath(ctx, userID, record.StoragePath)
		if err != nil {
			s.log.Warn("Reset record delete failed; continuing",
				"s3_key", record.StoragePath,
				"error", err.Error(),
			)
			continue
		}
		result.RecordsDeleted += int(affected)
	}

	s.log.Info("Reset complete",
		"user_id", userID,
		"graph_nodes_deleted", result.GraphNodesDeleted,
		"objects_deleted", result.ObjectsDeleted,
		"records_deleted", result.RecordsDeleted,
	)
	return result, nil
}

func (s *resetService) clearGraph(ctx context.Context, tenantKey string) (int64, error) {
	scoped := graphstore.WithTenant(s.graph, tenantKey)

	rows, err := scoped.ExecuteQuery(ctx, cypherClearTenantBulk, nil)
	if err == nil {
		return deletedCount(rows), nil
	}
	s.log.Warn("Bulk tenant clear failed; retrying with filtered form", "error", err.Error())

	rows, err = scoped.ExecuteQuery(ctx, cypherClearTenantFiltered, nil)
	if err == nil {
		return deletedCount(rows), nil
	}
	s.log.Warn("Filtered tenant clear failed; falling back to unscoped wipe", "error", err.Error())

	rows, err = s.graph.ExecuteQuery(ctx, cypherClearUnscoped, nil)
	if err != nil {
		return 0, err
	}
	return deletedCount(rows), nil
}

func deletedCount(rows []map[string]any) int64 {
	if len(rows) == 0 {
		return 0
	}
	count, _ := rows[0]["deleted"].(int64)
	return count
}
