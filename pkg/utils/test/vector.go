package testutils

import (
	"context"
	"iter"
	"math"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/papercomputeco/lookbook/pkg/vector"
)

// MockVectorStore is an in-memory vector.Store with exact cosine search.
type MockVectorStore struct {
	mu     sync.Mutex
	tables map[string]*MockTable

	// FailSearch makes every table's Search return this error.
	FailSearch error

	Dropped []string
}

func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{
		tables: make(map[string]*MockTable),
	}
}

func (s *MockVectorStore) TableNames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MockVectorStore) HasTable(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[name]
	return ok, nil
}

func (s *MockVectorStore) DropTable(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; !ok {
		return vector.ErrTableNotFound
	}
	delete(s.tables, name)
	s.Dropped = append(s.Dropped, name)
	return nil
}

func (s *MockVectorStore) CreateTable(ctx context.Context, name string, batches iter.Seq[[]vector.Item]) (vector.Table, error) {
	if err := vector.ValidateTableName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if _, ok := s.tables[name]; ok {
		s.mu.Unlock()
		return nil, vector.ErrTableExists
	}
	s.mu.Unlock()

	t := &MockTable{store: s, name: name, buildID: uuid.NewString()}
	for batch := range batches {
		for _, item := range batch {
			if t.dims == 0 {
				t.dims = len(item.Vector)
			}
			if len(item.Vector) != t.dims {
				return nil, vector.ErrDimensionMismatch
			}
			t.items = append(t.items, item)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.tables[name] = t
	s.mu.Unlock()
	return t, nil
}

func (s *MockVectorStore) OpenTable(_ context.Context, name string) (vector.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return nil, vector.ErrTableNotFound
	}
	return t, nil
}

func (s *MockVectorStore) Close() error {
	return nil
}

// Items returns a copy of the rows stored in a table.
func (s *MockVectorStore) Items(name string) []vector.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[name]
	if !ok {
		return nil
	}
	return slices.Clone(t.items)
}

// MockTable is a table held by MockVectorStore.
type MockTable struct {
	store       *MockVectorStore
	name        string
	buildID     string
	dims        int
	items       []vector.Item
	textIndexed bool
}

func (t *MockTable) Name() string    { return t.name }
func (t *MockTable) BuildID() string { return t.buildID }
func (t *MockTable) Dimensions() int { return t.dims }

func (t *MockTable) Count(_ context.Context) (int, error) {
	return len(t.items), nil
}

func (t *MockTable) Search(_ context.Context, q vector.Query) ([]vector.Hit, error) {
	if t.store.FailSearch != nil {
		return nil, t.store.FailSearch
	}
	if err := q.Filter.Validate(); err != nil {
		return nil, err
	}
	if len(t.items) > 0 && len(q.Vector) != t.dims {
		return nil, vector.ErrDimensionMismatch
	}

	hits := make([]vector.Hit, 0, len(t.items))
	for _, item := range t.items {
		if q.Filter != nil && !strings.Contains(item.Caption, q.Filter.Substring) {
			continue
		}
		hits = append(hits, vector.Hit{
			Filename: item.Filename,
			Caption:  item.Caption,
			Path:     item.Path,
			Distance: CosineDistance(q.Vector, item.Vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits, nil
}

func (t *MockTable) CreateTextIndex(_ context.Context, field string) error {
	if field != vector.CaptionField {
		return vector.ErrUnsupportedFilter
	}
	t.textIndexed = true
	return nil
}

// TextSearch scores each row by how many query terms its caption contains.
func (t *MockTable) TextSearch(_ context.Context, text string, limit int) ([]vector.TextHit, error) {
	if !t.textIndexed {
		return nil, vector.ErrNoTextIndex
	}

	terms := strings.Fields(strings.ToLower(text))
	var hits []vector.TextHit
	for _, item := range t.items {
		caption := strings.ToLower(item.Caption)
		score := 0
		for _, term := range terms {
			if strings.Contains(caption, term) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, vector.TextHit{
			Filename: item.Filename,
			Caption:  item.Caption,
			Path:     item.Path,
			Score:    float64(score),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// CosineDistance returns 1 - cos(a, b).
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

var (
	_ vector.Store = (*MockVectorStore)(nil)
	_ vector.Table = (*MockTable)(nil)
)
