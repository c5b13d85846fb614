package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/platform/vectorstore"
	"github.com/yungbote/graphrag-backend/internal/repos"
	"github.com/yungbote/graphrag-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testRepo(t *testing.T) repos.DocumentRepo {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.DocumentRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return repos.NewDocumentRepo(db, testLogger(t))
}

// fakeGraph records every executed query and answers through a
// per-test handler.
type executedQuery struct {
	query  string
	params map[string]any
}

type fakeGraph struct {
	mu      sync.Mutex
	queries []executedQuery
	handler func(query string, params map[string]any) ([]map[string]any, error)
}

func (g *fakeGraph) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	g.mu.Lock()
	g.queries = append(g.queries, executedQuery{query: query, params: params})
	g.mu.Unlock()
	if g.handler != nil {
		return g.handler(query, params)
	}
	return nil, nil
}

func (g *fakeGraph) executed(fragment string) []executedQuery {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []executedQuery
	for _, q := range g.queries {
		if strings.Contains(q.query, fragment) {
			out = append(out, q)
		}
	}
	return out
}

// fakeBackend is an in-memory vector store keyed by namespace and index,
// scoring with a dot product over the fake embeddings.
type fakeBackend struct {
	mu        sync.Mutex
	data      map[string]map[string][]vectorstore.Item
	upsertErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: map[string]map[string][]vectorstore.Item{}}
}

func (b *fakeBackend) Upsert(ctx context.Context, namespace, index string, items []vectorstore.Item) error {
	if b.upsertErr != nil {
		return b.upsertErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data[namespace] == nil {
		b.data[namespace] = map[string][]vectorstore.Item{}
	}
	b.data[namespace][index] = append(b.data[namespace][index], items...)
	return nil
}

func (b *fakeBackend) Query(ctx context.Context, namespace, index string, q []float32, topK int) ([]vectorstore.Match, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.data[namespace][index]
	matches := make([]vectorstore.Match, 0, len(items))
	for _, item := range items {
		var score float64
		for i := 0; i < len(q) && i < len(item.Values); i++ {
			score += float64(q[i]) * float64(item.Values[i])
		}
		matches = append(matches, vectorstore.Match{ID: item.ID, Score: score, Metadata: item.Metadata})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (b *fakeBackend) DeleteNamespace(ctx context.Context, namespace string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, namespace)
	return nil
}

func (b *fakeBackend) count(namespace, index string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data[namespace][index])
}

// fakeAI produces deterministic 3-dimensional embeddings and canned
// completions, recording the prompts it was given.
type fakeAI struct {
	mu          sync.Mutex
	userPrompts []string
	answer      string
	extraction  graphExtraction
}

func (a *fakeAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		h := fnv.New32a()
		_, _ = h.Write([]byte(input))
		sum := h.Sum32()
		out[i] = []float32{
			float32(sum%97) / 97.0,
			float32(sum%89) / 89.0,
			float32(sum%83) / 83.0,
		}
	}
	return out, nil
}

func (a *fakeAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	a.mu.Lock()
	a.userPrompts = append(a.userPrompts, user)
	a.mu.Unlock()
	if a.answer != "" {
		return a.answer, nil
	}
	return "generated answer", nil
}

func (a *fakeAI) GenerateJSON(ctx context.Context, system, user string, out any) error {
	target, ok := out.(*graphExtraction)
	if !ok {
		return fmt.Errorf("unexpected output type %T", out)
	}
	*target = a.extraction
	return nil
}

func (a *fakeAI) prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.userPrompts...)
}

// fakeBucket is an in-memory object store with optional failure
// injection per key.
type fakeBucket struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleted   []string
	deleteErr error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (b *fakeBucket) Upload(ctx context.Context, key string, content []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = content
	return nil
}

func (b *fakeBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBucket) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *fakeBucket) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func seedRecord(t *testing.T, repo repos.DocumentRepo, userID, tenantID, path, fingerprint string) {
	t.Helper()
	err := repo.Create(context.Background(), &types.DocumentRecord{
		ID:          uuid.New(),
		UserID:      userID,
		TenantID:    tenantID,
		StoragePath: path,
		FileName:    "doc.txt",
		Fingerprint: fingerprint,
		UploadedAt:  time.Now().UTC(),
		Status:      types.DocumentStatusCompleted,
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
}
