package document

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/caselight/caselight/internal/db"
	"github.com/caselight/caselight/internal/domain"
)

type fakeStore struct {
	hashes  map[string]map[string]string
	indexes map[string]*db.IndexDefinition

	knnResult  *db.SearchResult
	knnQuery   *db.KNNQuery
	countTotal int

	hsetErr   error
	searchErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		hashes:  make(map[string]map[string]string),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

func (f *fakeStore) HSet(_ context.Context, key string, fields map[string]string) error {
	if f.hsetErr != nil {
		return f.hsetErr
	}
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *fakeStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	h, ok := f.hashes[key]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if _, ok := f.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	f.indexes[def.Name] = def
	return nil
}

func (f *fakeStore) IndexExists(_ context.Context, name string) (bool, error) {
	_, ok := f.indexes[name]
	return ok, nil
}

func (f *fakeStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.knnQuery = q
	return f.knnResult, nil
}

func (f *fakeStore) SearchCount(_ context.Context, _, _ string) (int, error) {
	if f.searchErr != nil {
		return 0, f.searchErr
	}
	return f.countTotal, nil
}

func testDoc(id string) *domain.Document {
	return &domain.Document{
		ID:      id,
		EftaID:  "EFTA-" + id,
		Content: "flight logs covering the 2002 trips",
		DocType: "flight_log",
	}
}

func TestEnsureIndex_CreatesOnce(t *testing.T) {
	fs := newFakeStore()
	repo := New(fs, "test:", 4)

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}

	def, ok := fs.indexes["test:doc:idx"]
	if !ok {
		t.Fatal("index was not created")
	}
	if len(def.Prefixes) != 1 || def.Prefixes[0] != "test:doc:" {
		t.Errorf("index prefixes = %v, want [test:doc:]", def.Prefixes)
	}

	// Second call is a no-op, not an error.
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex() second call error = %v", err)
	}
}

func TestUpsert_WithoutEmbeddingOmitsVector(t *testing.T) {
	fs := newFakeStore()
	repo := New(fs, "test:", 4)

	if err := repo.Upsert(context.Background(), testDoc("d1"), nil); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	h := fs.hashes["test:doc:d1"]
	if h == nil {
		t.Fatal("document hash not written")
	}
	if _, ok := h[fieldVector]; ok {
		t.Error("vector field written for nil embedding")
	}
	if h[fieldEftaID] != "EFTA-d1" {
		t.Errorf("efta_id field = %q, want EFTA-d1", h[fieldEftaID])
	}
}

func TestUpsert_WithEmbeddingWritesVector(t *testing.T) {
	fs := newFakeStore()
	repo := New(fs, "test:", 4)

	err := repo.Upsert(context.Background(), testDoc("d1"), []float32{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	vec := fs.hashes["test:doc:d1"][fieldVector]
	if len(vec) != 16 {
		t.Errorf("vector blob length = %d, want 16", len(vec))
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	fs := newFakeStore()
	repo := New(fs, "test:", 4)

	err := repo.Upsert(context.Background(), testDoc("d1"), []float32{1, 2})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Upsert() error = %v, want ErrValidation", err)
	}
}

func TestGet_RoundTrip(t *testing.T) {
	fs := newFakeStore()
	repo := New(fs, "test:", 4)

	want := testDoc("d1")
	if err := repo.Upsert(context.Background(), want, nil); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.Get(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != want.ID || got.Content != want.Content || got.DocType != want.DocType {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo := New(newFakeStore(), "test:", 4)

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestCount(t *testing.T) {
	fs := newFakeStore()
	fs.countTotal = 137
	repo := New(fs, "test:", 4)

	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 137 {
		t.Errorf("Count() = %d, want 137", n)
	}
}

func TestNearestNeighbor_AttachesScoresAndMatchType(t *testing.T) {
	fs := newFakeStore()
	d1, _ := json.Marshal(testDoc("d1"))
	d2, _ := json.Marshal(testDoc("d2"))
	fs.knnResult = &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			{Key: "test:doc:d1", Score: 0.91, Fields: map[string]string{fieldDoc: string(d1)}},
			{Key: "test:doc:d2", Score: 0.74, Fields: map[string]string{fieldDoc: string(d2)}},
		},
	}
	repo := New(fs, "test:", 4)

	docs, err := repo.NearestNeighbor(context.Background(), []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("NearestNeighbor() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].ID != "d1" || docs[1].ID != "d2" {
		t.Errorf("order = [%s %s], want [d1 d2]", docs[0].ID, docs[1].ID)
	}
	if docs[0].RelevanceScore != 0.91 {
		t.Errorf("relevance score = %v, want 0.91", docs[0].RelevanceScore)
	}
	if docs[0].MatchType != "semantic" {
		t.Errorf("match type = %q, want semantic", docs[0].MatchType)
	}
	if fs.knnQuery.K != 10 {
		t.Errorf("KNN K = %d, want 10", fs.knnQuery.K)
	}
}

func TestNearestNeighbor_EmptyIndex(t *testing.T) {
	fs := newFakeStore()
	fs.knnResult = &db.SearchResult{}
	repo := New(fs, "test:", 4)

	docs, err := repo.NearestNeighbor(context.Background(), []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatalf("NearestNeighbor() error = %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("got %d documents, want 0", len(docs))
	}
}
