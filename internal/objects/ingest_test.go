package objects

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/CanoaPBC/speckle-server/internal/core"
)

// mockRepository records writes for ingestion tests. Sub-batches run
// concurrently, so every method locks.
type mockRepository struct {
	mu          sync.Mutex
	batchSizes  []int
	objects     map[string]*core.Object
	edges       map[string]core.ClosureEdge
	commits     map[string]string
	failWrites  bool
	edgeBatches int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		objects: make(map[string]*core.Object),
		edges:   make(map[string]core.ClosureEdge),
		commits: make(map[string]string),
	}
}

func (m *mockRepository) Close(ctx context.Context) error { return nil }

func (m *mockRepository) CreateObject(ctx context.Context, obj *core.Object) (string, error) {
	ids, err := m.CreateObjects(ctx, []*core.Object{obj})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (m *mockRepository) CreateObjects(ctx context.Context, objs []*core.Object) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return nil, errors.New("write failed")
	}
	m.batchSizes = append(m.batchSizes, len(objs))
	ids := make([]string, 0, len(objs))
	for _, obj := range objs {
		if _, exists := m.objects[obj.ID]; !exists {
			m.objects[obj.ID] = obj
		}
		ids = append(ids, obj.ID)
	}
	return ids, nil
}

func (m *mockRepository) GetObject(ctx context.Context, id string) (*core.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return obj, nil
}

func (m *mockRepository) GetObjects(ctx context.Context, ids []string) ([]*core.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*core.Object
	for _, id := range ids {
		if obj, ok := m.objects[id]; ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

func (m *mockRepository) UpdateObject(ctx context.Context, obj *core.Object) error {
	return core.ErrNotImplemented
}

func (m *mockRepository) DeleteObject(ctx context.Context, id string) error {
	return core.ErrNotImplemented
}

func (m *mockRepository) CreateClosures(ctx context.Context, edges []core.ClosureEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errors.New("write failed")
	}
	if len(edges) == 0 {
		return nil
	}
	m.edgeBatches++
	for _, e := range edges {
		key := e.Parent + "/" + e.Child
		if _, exists := m.edges[key]; !exists {
			m.edges[key] = e
		}
	}
	return nil
}

func (m *mockRepository) Children(ctx context.Context, q core.ChildrenQuery) (*core.ChildrenPage, error) {
	return &core.ChildrenPage{}, nil
}

func (m *mockRepository) ChildrenFiltered(ctx context.Context, q core.ChildrenFilterQuery) (*core.ChildrenResult, error) {
	return &core.ChildrenResult{}, nil
}

func (m *mockRepository) CreateCommit(ctx context.Context, streamID, commitID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits[streamID+"/"+commitID] = commitID
	return nil
}

func (m *mockRepository) CommitsByStream(ctx context.Context, streamID string) ([]*core.Object, error) {
	return nil, nil
}

func makeDocs(n int) []core.Document {
	docs := make([]core.Document, n)
	for i := range docs {
		docs[i] = core.Document{"index": i, "name": fmt.Sprintf("object-%d", i)}
	}
	return docs
}

func TestIngestChunking(t *testing.T) {
	repo := newMockRepository()
	ids, err := ingest(context.Background(), repo, makeDocs(600), 250)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(ids) != 600 {
		t.Fatalf("ids = %d, want 600", len(ids))
	}

	sizes := make(map[int]int)
	for _, size := range repo.batchSizes {
		sizes[size]++
	}
	if len(repo.batchSizes) != 3 || sizes[250] != 2 || sizes[100] != 1 {
		t.Errorf("sub-batch sizes = %v, want two of 250 and one of 100", repo.batchSizes)
	}
}

func TestIngestPreservesInputOrder(t *testing.T) {
	repo := newMockRepository()
	docs := makeDocs(20)

	ids, err := ingest(context.Background(), repo, docs, 7)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	for i, id := range ids {
		obj, err := repo.GetObject(context.Background(), id)
		if err != nil {
			t.Fatalf("stored object %d missing: %v", i, err)
		}
		if got := obj.Data["index"]; got != i {
			t.Errorf("ids[%d] resolves to input index %v", i, got)
		}
	}
}

func TestIngestEmptyInput(t *testing.T) {
	repo := newMockRepository()
	ids, err := ingest(context.Background(), repo, nil, 250)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want none", ids)
	}
	if len(repo.batchSizes) != 0 {
		t.Error("empty ingest issued writes")
	}
}

func TestIngestPropagatesWriteFailure(t *testing.T) {
	repo := newMockRepository()
	repo.failWrites = true
	if _, err := ingest(context.Background(), repo, makeDocs(10), 3); err == nil {
		t.Fatal("expected ingest to fail")
	}
}

func TestIngestIdempotentRetry(t *testing.T) {
	repo := newMockRepository()
	docs := makeDocs(30)

	first, err := ingest(context.Background(), repo, docs, 10)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := ingest(context.Background(), repo, docs, 10)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("id counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("ids[%d] differ: %s vs %s", i, first[i], second[i])
		}
	}
	if len(repo.objects) != 30 {
		t.Errorf("stored objects = %d, want 30", len(repo.objects))
	}
}

func TestServiceCreateCommit(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)

	id, err := svc.CreateCommit(context.Background(), "stream-1", "user-1", core.Document{"message": "first"})
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}

	obj, err := repo.GetObject(context.Background(), id)
	if err != nil {
		t.Fatalf("commit object missing: %v", err)
	}
	if obj.SpeckleType != core.SpeckleTypeCommit {
		t.Errorf("speckle type = %q, want %q", obj.SpeckleType, core.SpeckleTypeCommit)
	}
	if obj.Author != "user-1" {
		t.Errorf("author = %q, want user-1", obj.Author)
	}
	if _, ok := repo.commits["stream-1/"+id]; !ok {
		t.Error("stream link not created")
	}
}
