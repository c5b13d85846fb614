package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/graphrag-backend/internal/repos"
	"github.com/yungbote/graphrag-backend/internal/tenant"
)

func newTestReset(t *testing.T, graph *fakeGraph, backend *fakeBackend, bucket *fakeBucket, repo repos.DocumentRepo) ResetService {
	t.Helper()
	svc, err := NewResetService(testLogger(t), graph, backend, bucket, repo)
	if err != nil {
		t.Fatalf("NewResetService: %v", err)
	}
	return svc
}

func TestResetClearsEverythingAndReportsCounts(t *testing.T) {
	nodesRemaining := int64(5)
	graph := &fakeGraph{handler: func(query string, params map[string]any) ([]map[string]any, error) {
		deleted := nodesRemaining
		nodesRemaining = 0
		return []map[string]any{{"deleted": deleted}}, nil
	}}

	backend := newFakeBackend()
	tenantKey := tenant.DeriveKey("tenant-a")
	_ = backend.Upsert(context.Background(), tenantKey, chunkIndexName, nil)

	bucket := newFakeBucket()
	_ = bucket.Upload(context.Background(), "documents/u1/a/one.txt", []byte("1"), "text/plain")
	_ = bucket.Upload(context.Background(), "documents/u1/b/two.txt", []byte("2"), "text/plain")
	_ = bucket.Upload(context.Background(), "documents/u1/c/other.txt", []byte("3"), "text/plain")

	repo := testRepo(t)
	seedRecord(t, repo, "u1", "tenant-a", "documents/u1/a/one.txt", "fp-1")
	seedRecord(t, repo, "u1", "tenant-a", "documents/u1/b/two.txt", "fp-2")
	// Same user, different tenant: reset must not touch it.
	seedRecord(t, repo, "u1", "tenant-z", "documents/u1/c/other.txt", "fp-3")

	svc := newTestReset(t, graph, backend, bucket, repo)

	result, aerr := svc.Reset(context.Background(), "u1", "tenant-a")
	if aerr != nil {
		t.Fatalf("Reset: %v", aerr)
	}
	if result.GraphNodesDeleted != 5 {
		t.Fatalf("graph nodes deleted = %d, want 5", result.GraphNodesDeleted)
	}
	if !result.VectorsCleared {
		t.Fatal("vectors not cleared")
	}
	if result.ObjectsDeleted != 2 {
		t.Fatalf("objects deleted = %d, want 2", result.ObjectsDeleted)
	}
	if result.RecordsDeleted != 2 {
		t.Fatalf("records deleted = %d, want 2", result.RecordsDeleted)
	}

	if !bucket.has("documents/u1/c/other.txt") {
		t.Fatal("other tenant's object was deleted")
	}
	remaining, err := repo.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(remaining) != 1 || remaining[0].TenantID != "tenant-z" {
		t.Fatalf("remaining records = %+v", remaining)
	}

	// A second reset finds nothing and says so.
	second, aerr := svc.Reset(context.Background(), "u1", "tenant-a")
	if aerr != nil {
		t.Fatalf("second Reset: %v", aerr)
	}
	if second.GraphNodesDeleted != 0 || second.ObjectsDeleted != 0 || second.RecordsDeleted != 0 {
		t.Fatalf("second reset reported deletions: %+v", second)
	}
}

func TestResetLadderFallsBackToFilteredForm(t *testing.T) {
	var executedForms []string
	graph := &fakeGraph{handler: func(query string, params map[string]any) ([]map[string]any, error) {
		switch {
		case strings.Contains(query, "MATCH (n {tenant_key:"):
			executedForms = append(executedForms, "bulk")
			return nil, fmt.Errorf("property index offline")
		case strings.Contains(query, "WHERE n.tenant_key"):
			executedForms = append(executedForms, "filtered")
			return []map[string]any{{"deleted": int64(3)}}, nil
		default:
			executedForms = append(executedForms, "unscoped")
			return []map[string]any{{"deleted": int64(99)}}, nil
		}
	}}

	svc := newTestReset(t, graph, newFakeBackend(), newFakeBucket(), testRepo(t))

	result, aerr := svc.Reset(context.Background(), "u1", "tenant-a")
	if aerr != nil {
		t.Fatalf("Reset: %v", aerr)
	}
	if result.GraphNodesDeleted != 3 {
		t.Fatalf("graph nodes deleted = %d, want 3 from the filtered form", result.GraphNodesDeleted)
	}
	want := []string{"bulk", "filtered"}
	if len(executedForms) != len(want) {
		t.Fatalf("executed forms = %v, want %v", executedForms, want)
	}
	for i := range want {
		if executedForms[i] != want[i] {
			t.Fatalf("executed forms = %v, want %v", executedForms, want)
		}
	}
}

func TestResetContinuesPastObjectDeleteFailures(t *testing.T) {
	graph := &fakeGraph{handler: func(query string, params map[string]any) ([]map[string]any, error) {
		return []map[string]any{{"deleted": int64(0)}}, nil
	}}
	bucket := newFakeBucket()
	bucket.deleteErr = fmt.Errorf("access denied")

	repo := testRepo(t)
	seedRecord(t, repo, "u1", "tenant-a", "documents/u1/a/one.txt", "fp-1")
	seedRecord(t, repo, "u1", "tenant-a", "documents/u1/b/two.txt", "fp-2")

	svc := newTestReset(t, graph, newFakeBackend(), bucket, repo)

	result, aerr := svc.Reset(context.Background(), "u1", "tenant-a")
	if aerr != nil {
		t.Fatalf("Reset: %v", aerr)
	}
	if result.ObjectsDeleted != 0 {
		t.Fatalf("objects deleted = %d, want 0", result.ObjectsDeleted)
	}
	// Records still go, so a rerun cannot resurrect the documents.
	if result.RecordsDeleted != 2 {
		t.Fatalf("records deleted = %d, want 2", result.RecordsDeleted)
	}
}

func TestResetValidation(t *testing.T) {
	svc := newTestReset(t, &fakeGraph{}, newFakeBackend(), newFakeBucket(), testRepo(t))

	if _, aerr := svc.Reset(context.Background(), "", "tenant-a"); aerr == nil {
		t.Fatal("missing user accepted")
	}
	if _, aerr := svc.Reset(context.Background(), "u1", ""); aerr == nil {
		t.Fatal("missing tenant accepted")
	}
}
