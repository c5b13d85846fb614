package vectorstore

import (
	"context"

	"github.com/yungbote/graphrag-backend/internal/platform/storeerr"
)

type readOnlyStore struct {
	inner Store
}

// ReadOnly wraps a Store so any mutating operation fails with a
// permission_denied OperationError before reaching the backend. The query
// path runs on a ReadOnly store so a retrieval can never write.
func ReadOnly(inner Store) Store {
	return &readOnlyStore{inner: inner}
}

func (s *readOnlyStore) GetIndex(name string) Index {
	return &readOnlyIndex{inner: s.inner.GetIndex(name), name: name}
}

func (s *readOnlyStore) DeleteAll(ctx context.Context) error {
	return storeerr.New("vector", "delete_all", storeerr.CodePermissionDenied,
		"delete attempted through read-only store", nil)
}

type readOnlyIndex struct {
	inner Index
	name  string
}

func (i *readOnlyIndex) TopK(ctx context.Context, q []float32, k int) ([]Match, error) {
	return i.inner.TopK(ctx, q, k)
}

func (i *readOnlyIndex) Upsert(ctx context.Context, items []Item) error {
	return storeerr.New("vector", "upsert", storeerr.CodePermissionDenied,
		"upsert attempted through read-only index "+i.name, nil)
}
