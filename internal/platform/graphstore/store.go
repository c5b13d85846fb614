// Package graphstore exposes the graph database behind a narrow query
// capability plus a tenant-scoping decorator. Handlers and services never
// see a driver session.
package graphstore

import "context"

// Store executes a Cypher query and returns one map per result row.
// Implementations acquire and release their session per call, on every
// exit path.
type Store interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// TenantKeyParam is the parameter name every tenant-filtered query in this
// codebase references. The tenant decorator supplies it; callers never do.
const TenantKeyParam = "tenant_key"

type tenantStore struct {
	inner Store
	key   string
}

// WithTenant wraps a Store so each query runs with the caller's tenant key
// bound to $tenant_key. The key always wins over a caller-supplied value of
// the same name, so data from different tenants cannot be mixed by a
// forgotten or forged parameter.
func WithTenant(inner Store, tenantKey string) Store {
	return &tenantStore{inner: inner, key: tenantKey}
}

func (s *tenantStore) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	scoped := make(map[string]any, len(params)+1)
	for k, v := range params {
		scoped[k] = v
	}
	scoped[TenantKeyParam] = s.key
	return s.inner.ExecuteQuery(ctx, query, scoped)
}
