package services

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/yungbote/graphrag-backend/internal/platform/storeerr"
	"github.com/yungbote/graphrag-backend/internal/repos"
	"github.com/yungbote/graphrag-backend/internal/tenant"
)

func newTestIngestion(t *testing.T, graph *fakeGraph, backend *fakeBackend, ai *fakeAI, bucket *fakeBucket, repo repos.DocumentRepo) IngestionService {
	t.Helper()
	svc, err := NewIngestionService(testLogger(t), graph, backend, ai, bucket, repo)
	if err != nil {
		t.Fatalf("NewIngestionService: %v", err)
	}
	return svc
}

func TestIngestHappyPath(t *testing.T) {
	t.Setenv("GRAPH_EXTRACTION_ENABLED", "false")

	graph := &fakeGraph{}
	backend := newFakeBackend()
	ai := &fakeAI{}
	bucket := newFakeBucket()
	repo := testRepo(t)
	svc := newTestIngestion(t, graph, backend, ai, bucket, repo)

	content := []byte("a small document about graphs")
	result, aerr := svc.Ingest(context.Background(), "u1", "tenant-a", "doc.txt", content, "text/plain")
	if aerr != nil {
		t.Fatalf("Ingest: %v", aerr)
	}
	if result.AlreadyProcessed {
		t.Fatal("fresh ingest reported already processed")
	}
	if result.ChunksCreated != 1 {
		t.Fatalf("chunks created = %d, want 1", result.ChunksCreated)
	}
	if !strings.HasPrefix(result.S3Key, "documents/u1/") || !strings.HasSuffix(result.S3Key, "/doc.txt") {
		t.Fatalf("s3 key = %q", result.S3Key)
	}
	if !bucket.has(result.S3Key) {
		t.Fatal("object missing from bucket")
	}

	// Both indexes hold exactly as many chunks as the record claims.
	tenantKey := tenant.DeriveKey("tenant-a")
	if got := backend.count(tenantKey, chunkIndexName); got != result.ChunksCreated {
		t.Fatalf("vector count = %d, want %d", got, result.ChunksCreated)
	}
	if got := len(graph.executed("MERGE (c:Chunk")); got != result.ChunksCreated {
		t.Fatalf("graph chunk writes = %d, want %d", got, result.ChunksCreated)
	}
	if got := len(graph.executed("MERGE (s:Source")); got != 1 {
		t.Fatalf("source merges = %d, want 1", got)
	}

	record, err := repo.GetByFingerprint(context.Background(), tenant.Fingerprint("u1", "tenant-a", content))
	if err != nil || record == nil {
		t.Fatalf("record lookup: record=%v err=%v", record, err)
	}
	if record.ChunksCreated != result.ChunksCreated {
		t.Fatalf("record chunks = %d, want %d", record.ChunksCreated, result.ChunksCreated)
	}
	if record.StoragePath != result.S3Key {
		t.Fatalf("record path = %q, want %q", record.StoragePath, result.S3Key)
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Setenv("GRAPH_EXTRACTION_ENABLED", "false")

	graph := &fakeGraph{}
	backend := newFakeBackend()
	bucket := newFakeBucket()
	repo := testRepo(t)
	svc := newTestIngestion(t, graph, backend, &fakeAI{}, bucket, repo)

	content := []byte("same content both times")
	first, aerr := svc.Ingest(context.Background(), "u1", "tenant-a", "doc.txt", content, "text/plain")
	if aerr != nil {
		t.Fatalf("first Ingest: %v", aerr)
	}

	second, aerr := svc.Ingest(context.Background(), "u1", "tenant-a", "doc.txt", content, "text/plain")
	if aerr != nil {
		t.Fatalf("second Ingest: %v", aerr)
	}
	if !second.AlreadyProcessed {
		t.Fatal("duplicate ingest was not skipped")
	}
	if second.ChunksCreated != 0 {
		t.Fatalf("duplicate chunks created = %d, want 0", second.ChunksCreated)
	}
	if second.S3Key != first.S3Key {
		t.Fatalf("duplicate returned key %q, want %q", second.S3Key, first.S3Key)
	}
	if bucket.size() != 1 {
		t.Fatalf("bucket holds %d objects, want 1", bucket.size())
	}

	tenantKey := tenant.DeriveKey("tenant-a")
	if got := backend.count(tenantKey, chunkIndexName); got != first.ChunksCreated {
		t.Fatalf("duplicate ingest grew the vector index to %d", got)
	}
}

func TestIngestSameContentDifferentUserIsNotADuplicate(t *testing.T) {
	t.Setenv("GRAPH_EXTRACTION_ENABLED", "false")

	svc := newTestIngestion(t, &fakeGraph{}, newFakeBackend(), &fakeAI{}, newFakeBucket(), testRepo(t))

	content := []byte("shared content")
	if _, aerr := svc.Ingest(context.Background(), "u1", "tenant-a", "doc.txt", content, "text/plain"); aerr != nil {
		t.Fatalf("first Ingest: %v", aerr)
	}
	second, aerr := svc.Ingest(context.Background(), "u2", "tenant-a", "doc.txt", content, "text/plain")
	if aerr != nil {
		t.Fatalf("second Ingest: %v", aerr)
	}
	if second.AlreadyProcessed {
		t.Fatal("different user was treated as a duplicate")
	}
}

func TestIngestRejectsUnsupportedType(t *testing.T) {
	t.Setenv("GRAPH_EXTRACTION_ENABLED", "false")

	bucket := newFakeBucket()
	svc := newTestIngestion(t, &fakeGraph{}, newFakeBackend(), &fakeAI{}, bucket, testRepo(t))

	_, aerr := svc.Ingest(context.Background(), "u1", "tenant-a", "image.png", []byte("bytes"), "image/png")
	if aerr == nil {
		t.Fatal("expected rejection")
	}
	if aerr.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", aerr.Status)
	}
	if bucket.size() != 0 {
		t.Fatal("rejected upload still wrote an object")
	}
}

func TestIngestCompensatesOnVectorFailure(t *testing.T) {
	t.Setenv("GRAPH_EXTRACTION_ENABLED", "false")

	graph := &fakeGraph{}
	backend := newFakeBackend()
	backend.upsertErr = storeerr.New("qdrant", "upsert", storeerr.CodeValidation, "forced failure", nil)
	bucket := newFakeBucket()
	repo := testRepo(t)
	svc := newTestIngestion(t, graph, backend, &fakeAI{}, bucket, repo)

	content := []byte("content that will fail to index")
	_, aerr := svc.Ingest(context.Background(), "u1", "tenant-a", "doc.txt", content, "text/plain")
	if aerr == nil {
		t.Fatal("expected ingest failure")
	}
	if aerr.Code != "vector_build_failed" {
		t.Fatalf("code = %q, want vector_build_failed", aerr.Code)
	}

	if bucket.size() != 0 {
		t.Fatal("failed ingest left the object behind")
	}
	if got := len(graph.executed("DETACH DELETE s")); got != 1 {
		t.Fatalf("subgraph cleanup queries = %d, want 1", got)
	}

	record, err := repo.GetByFingerprint(context.Background(), tenant.Fingerprint("u1", "tenant-a", content))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if record != nil {
		t.Fatal("failed ingest wrote a record")
	}
}

func TestIngestExtractionWritesStatements(t *testing.T) {
	t.Setenv("GRAPH_EXTRACTION_ENABLED", "true")

	graph := &fakeGraph{}
	ai := &fakeAI{extraction: graphExtraction{Topics: []extractedTopic{{
		Topic: "graph databases",
		Statements: []extractedStatement{{
			Statement: "Graph databases store relationships as first-class data.",
			Facts:     []string{"Edges are traversed without joins."},
		}},
	}}}}
	svc := newTestIngestion(t, graph, newFakeBackend(), ai, newFakeBucket(), testRepo(t))

	if _, aerr := svc.Ingest(context.Background(), "u1", "tenant-a", "doc.txt", []byte("graphs"), "text/plain"); aerr != nil {
		t.Fatalf("Ingest: %v", aerr)
	}

	attached := graph.executed("MERGE (t:Topic")
	if len(attached) != 1 {
		t.Fatalf("statement attach queries = %d, want 1", len(attached))
	}
	params := attached[0].params
	if params["topic"] != "graph databases" {
		t.Fatalf("topic param = %v", params["topic"])
	}
	facts, ok := params["facts"].([]map[string]any)
	if !ok || len(facts) != 1 {
		t.Fatalf("facts param = %v", params["facts"])
	}
	if facts[0]["text"] != "Edges are traversed without joins." {
		t.Fatalf("fact text = %v", facts[0]["text"])
	}
}

func TestIngestScopesWritesToTenantKey(t *testing.T) {
	t.Setenv("GRAPH_EXTRACTION_ENABLED", "false")

	graph := &fakeGraph{}
	backend := newFakeBackend()
	svc := newTestIngestion(t, graph, backend, &fakeAI{}, newFakeBucket(), testRepo(t))

	if _, aerr := svc.Ingest(context.Background(), "u1", "tenant-a", "doc.txt", []byte("scoped"), "text/plain"); aerr != nil {
		t.Fatalf("Ingest: %v", aerr)
	}

	wantKey := tenant.DeriveKey("tenant-a")
	for _, q := range graph.executed("") {
		if q.params["tenant_key"] != wantKey {
			t.Fatalf("query ran with tenant key %v, want %v", q.params["tenant_key"], wantKey)
		}
	}
	if backend.count(wantKey, chunkIndexName) == 0 {
		t.Fatal("vectors were not written under the tenant namespace")
	}
}
