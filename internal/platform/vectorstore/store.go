// Package vectorstore defines the vector index capability used by the
// ingestion and query paths, plus the two structural decorators that
// enforce tenant isolation and read-only access.
package vectorstore

import "context"

// Match is one ranked similarity hit. Higher scores are better.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Item is one embedded chunk to upsert.
type Item struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Backend is the raw provider surface: every operation names its
// namespace explicitly. Only the tenant decorator talks to a Backend;
// everything above it works with Store handles that carry the namespace
// implicitly.
type Backend interface {
	Query(ctx context.Context, namespace, index string, q []float32, topK int) ([]Match, error)
	Upsert(ctx context.Context, namespace, index string, items []Item) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Index is a handle on one named index within a store's namespace.
type Index interface {
	TopK(ctx context.Context, q []float32, k int) ([]Match, error)
	Upsert(ctx context.Context, items []Item) error
}

// Store hands out index handles scoped to a single namespace.
type Store interface {
	GetIndex(name string) Index
	// DeleteAll removes every vector in the store's namespace.
	DeleteAll(ctx context.Context) error
}

type tenantStore struct {
	backend Backend
	key     string
}

// WithTenant binds a Backend to one tenant's namespace. Every read and
// write through the returned Store is confined to that namespace; callers
// never pass the tenant again.
func WithTenant(backend Backend, tenantKey string) Store {
	return &tenantStore{backend: backend, key: tenantKey}
}

func (s *tenantStore) GetIndex(name string) Index {
	return &tenantIndex{store: s, name: name}
}

func (s *tenantStore) DeleteAll(ctx context.Context) error {
	return s.backend.DeleteNamespace(ctx, s.key)
}

type tenantIndex struct {
	store *tenantStore
	name  string
}

func (i *tenantIndex) TopK(ctx context.Context, q []float32, k int) ([]Match, error) {
	return i.store.backend.Query(ctx, i.store.key, i.name, q, k)
}

func (i *tenantIndex) Upsert(ctx context.Context, items []Item) error {
	return i.store.backend.Upsert(ctx, i.store.key, i.name, items)
}
