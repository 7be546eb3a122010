package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/papercomputeco/lookbook/pkg/imagefs"
	"github.com/papercomputeco/lookbook/pkg/models"
)

// DefaultMockDimensions is the vector length MockEmbedder produces.
const DefaultMockDimensions = 8

// MockEmbedder is a test embedder that returns predictable embeddings.
// Vectors not found in the maps are derived from a hash of the filename or
// text, so the same input always maps to the same vector.
type MockEmbedder struct {
	mu sync.Mutex

	Dims  int
	Model string

	// ImageVectors overrides the vector for an image, keyed by filename.
	ImageVectors map[string][]float32

	// TextVectors overrides the vector for a text query.
	TextVectors map[string][]float32

	// FailOnImage fails any image batch containing this filename.
	FailOnImage string

	// FailOnText causes EmbedText to return an error when the input matches.
	FailOnText string

	ImageBatches []int
	TextCalls    int
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Dims:         DefaultMockDimensions,
		Model:        "mock-embedder",
		ImageVectors: make(map[string][]float32),
		TextVectors:  make(map[string][]float32),
	}
}

func (m *MockEmbedder) EmbedImages(_ context.Context, images []imagefs.Image) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ImageBatches = append(m.ImageBatches, len(images))

	out := make([][]float32, len(images))
	for i, img := range images {
		if m.FailOnImage != "" && img.Filename == m.FailOnImage {
			return nil, fmt.Errorf("%w: mock embedding failure for: %s", models.ErrEmbedding, img.Filename)
		}
		if v, ok := m.ImageVectors[img.Filename]; ok {
			out[i] = v
			continue
		}
		out[i] = HashVector(img.Filename, m.Dims)
	}
	return out, nil
}

func (m *MockEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TextCalls++

	if m.FailOnText != "" && text == m.FailOnText {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", models.ErrEmbedding, text)
	}
	if v, ok := m.TextVectors[text]; ok {
		return v, nil
	}
	return HashVector(text, m.Dims), nil
}

func (m *MockEmbedder) ModelName() string {
	return m.Model
}

func (m *MockEmbedder) Close() error {
	return nil
}

// HashVector derives a deterministic, non-zero vector of length dims from key.
func HashVector(key string, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		h := fnv.New32a()
		fmt.Fprintf(h, "%s/%d", key, i)
		v[i] = float32(h.Sum32()%2000)/1000 - 1
	}
	v[0] += 2
	return v
}

var _ models.Embedder = (*MockEmbedder)(nil)
