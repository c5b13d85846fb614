package services

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/yungbote/graphrag-backend/internal/repos"
	"github.com/yungbote/graphrag-backend/internal/tenant"
)

func newTestDocuments(t *testing.T, graph *fakeGraph, bucket *fakeBucket, repo repos.DocumentRepo) DocumentService {
	t.Helper()
	svc, err := NewDocumentService(testLogger(t), graph, bucket, repo)
	if err != nil {
		t.Fatalf("NewDocumentService: %v", err)
	}
	return svc
}

func TestDeleteDocument(t *testing.T) {
	graph := &fakeGraph{}
	bucket := newFakeBucket()
	repo := testRepo(t)

	key := "documents/u1/a/doc.txt"
	_ = bucket.Upload(context.Background(), key, []byte("content"), "text/plain")
	seedRecord(t, repo, "u1", "tenant-a", key, "fp-1")

	svc := newTestDocuments(t, graph, bucket, repo)

	if aerr := svc.Delete(context.Background(), "u1", "tenant-a", key); aerr != nil {
		t.Fatalf("Delete: %v", aerr)
	}

	if bucket.has(key) {
		t.Fatal("object survived delete")
	}
	if record, _ := repo.GetByUserAndPath(context.Background(), "u1", key); record != nil {
		t.Fatal("record survived delete")
	}

	// The subgraph delete ran under the tenant's key with the record's
	// fingerprint as the source id.
	deletes := graph.executed("DETACH DELETE s")
	if len(deletes) != 1 {
		t.Fatalf("subgraph deletes = %d, want 1", len(deletes))
	}
	if deletes[0].params["source_id"] != "fp-1" {
		t.Fatalf("source_id param = %v", deletes[0].params["source_id"])
	}
	if deletes[0].params["tenant_key"] != tenant.DeriveKey("tenant-a") {
		t.Fatalf("tenant_key param = %v", deletes[0].params["tenant_key"])
	}
}

func TestDeleteDocumentWithoutTenantUsesRecordTenant(t *testing.T) {
	graph := &fakeGraph{}
	bucket := newFakeBucket()
	repo := testRepo(t)

	key := "documents/u1/a/doc.txt"
	_ = bucket.Upload(context.Background(), key, []byte("content"), "text/plain")
	seedRecord(t, repo, "u1", "tenant-b", key, "fp-1")

	svc := newTestDocuments(t, graph, bucket, repo)

	if aerr := svc.Delete(context.Background(), "u1", "", key); aerr != nil {
		t.Fatalf("Delete: %v", aerr)
	}

	deletes := graph.executed("DETACH DELETE s")
	if len(deletes) != 1 {
		t.Fatalf("subgraph deletes = %d, want 1", len(deletes))
	}
	if deletes[0].params["tenant_key"] != tenant.DeriveKey("tenant-b") {
		t.Fatalf("tenant_key param = %v, want the record's tenant", deletes[0].params["tenant_key"])
	}
}

func TestDeleteDocumentNotFound(t *testing.T) {
	svc := newTestDocuments(t, &fakeGraph{}, newFakeBucket(), testRepo(t))

	aerr := svc.Delete(context.Background(), "u1", "tenant-a", "documents/u1/missing.txt")
	if aerr == nil {
		t.Fatal("expected not found")
	}
	if aerr.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", aerr.Status)
	}
}

func TestDeleteSourceStatementSparesSharedTopics(t *testing.T) {
	// Topics are MERGEd by name within a tenant, so two documents'
	// chunks can mention the same Topic node. The delete statement must
	// drop this source's chunks first and only then remove topics no
	// remaining chunk references, or deleting one document would take
	// the other's topic subtree with it.
	guard := "WHERE NOT (:Chunk)-[:MENTIONS]->(t)"
	guardAt := strings.Index(cypherDeleteSource, guard)
	if guardAt < 0 {
		t.Fatal("delete statement has no orphan guard on topics")
	}
	chunksAt := strings.Index(cypherDeleteSource, "FOREACH (n IN chunks | DETACH DELETE n)")
	if chunksAt < 0 {
		t.Fatal("delete statement does not remove the source's chunks")
	}
	if chunksAt > guardAt {
		t.Fatal("chunks must be deleted before the orphan check runs")
	}
	topicsAt := strings.Index(cypherDeleteSource, "FOREACH (n IN topics | DETACH DELETE n)")
	if topicsAt < guardAt {
		t.Fatal("topics must only be deleted after the orphan check")
	}
}

func TestListDocuments(t *testing.T) {
	repo := testRepo(t)
	seedRecord(t, repo, "u1", "tenant-a", "documents/u1/a/doc.txt", "fp-1")

	svc := newTestDocuments(t, &fakeGraph{}, newFakeBucket(), repo)

	records, aerr := svc.List(context.Background(), "u1")
	if aerr != nil {
		t.Fatalf("List: %v", aerr)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}

	empty, aerr := svc.List(context.Background(), "nobody")
	if aerr != nil {
		t.Fatalf("List empty: %v", aerr)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("empty list = %v, want empty non-nil slice", empty)
	}
}
