package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/graphrag-backend/internal/platform/storeerr"
)

type recordingBackend struct {
	queryNS  string
	upsertNS string
	deleteNS string
	index    string
	items    []Item
	matches  []Match
}

func (b *recordingBackend) Query(ctx context.Context, namespace, index string, q []float32, topK int) ([]Match, error) {
	b.queryNS = namespace
	b.index = index
	return b.matches, nil
}

func (b *recordingBackend) Upsert(ctx context.Context, namespace, index string, items []Item) error {
	b.upsertNS = namespace
	b.index = index
	b.items = items
	return nil
}

func (b *recordingBackend) DeleteNamespace(ctx context.Context, namespace string) error {
	b.deleteNS = namespace
	return nil
}

func TestWithTenantBindsNamespaceOnEveryOperation(t *testing.T) {
	backend := &recordingBackend{matches: []Match{{ID: "c1", Score: 0.9}}}
	store := WithTenant(backend, "abc123def0")
	index := store.GetIndex("chunks")

	if _, err := index.TopK(context.Background(), []float32{0.1}, 3); err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if backend.queryNS != "abc123def0" {
		t.Fatalf("query namespace = %q, want tenant key", backend.queryNS)
	}
	if backend.index != "chunks" {
		t.Fatalf("index = %q, want chunks", backend.index)
	}

	if err := index.Upsert(context.Background(), []Item{{ID: "c1", Values: []float32{0.1}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if backend.upsertNS != "abc123def0" {
		t.Fatalf("upsert namespace = %q, want tenant key", backend.upsertNS)
	}

	if err := store.DeleteAll(context.Background()); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if backend.deleteNS != "abc123def0" {
		t.Fatalf("delete namespace = %q, want tenant key", backend.deleteNS)
	}
}

func TestWithTenantSeparatesTenants(t *testing.T) {
	backend := &recordingBackend{}

	_ = WithTenant(backend, "tenant-one").GetIndex("chunks").Upsert(context.Background(), nil)
	first := backend.upsertNS
	_ = WithTenant(backend, "tenant-two").GetIndex("chunks").Upsert(context.Background(), nil)

	if first == backend.upsertNS {
		t.Fatal("two tenants wrote to the same namespace")
	}
}

func TestReadOnlyBlocksMutationsBeforeIO(t *testing.T) {
	backend := &recordingBackend{matches: []Match{{ID: "c1", Score: 0.5}}}
	store := ReadOnly(WithTenant(backend, "abc123def0"))

	err := store.DeleteAll(context.Background())
	if err == nil {
		t.Fatal("DeleteAll succeeded through read-only store")
	}
	if !storeerr.IsPermissionDenied(err) {
		t.Fatalf("DeleteAll error = %v, want permission denied", err)
	}
	if backend.deleteNS != "" {
		t.Fatal("read-only DeleteAll reached the backend")
	}

	err = store.GetIndex("chunks").Upsert(context.Background(), []Item{{ID: "c1", Values: []float32{0.1}}})
	if !storeerr.IsPermissionDenied(err) {
		t.Fatalf("Upsert error = %v, want permission denied", err)
	}
	if backend.items != nil {
		t.Fatal("read-only Upsert reached the backend")
	}

	var opErr *storeerr.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("error %v is not an OperationError", err)
	}
}

func TestReadOnlyPassesReadsThrough(t *testing.T) {
	backend := &recordingBackend{matches: []Match{{ID: "c1", Score: 0.5}}}
	store := ReadOnly(WithTenant(backend, "abc123def0"))

	matches, err := store.GetIndex("chunks").TopK(context.Background(), []float32{0.1}, 1)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "c1" {
		t.Fatalf("matches = %+v", matches)
	}
}
