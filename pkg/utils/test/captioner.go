package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/lookbook/pkg/imagefs"
	"github.com/papercomputeco/lookbook/pkg/models"
)

// MockCaptioner returns deterministic captions wrapped in the control tokens
// a seq2seq caption model emits, so callers exercise CleanCaption.
type MockCaptioner struct {
	mu sync.Mutex

	// Captions overrides the caption for an image, keyed by filename.
	Captions map[string]string

	// FailOnCall fails the Nth call (1-based). Zero never fails.
	FailOnCall int

	// ShortBy drops this many captions from every response.
	ShortBy int

	// Batches records the filenames of every call, in order.
	Batches [][]string
	Prompts []string
}

func NewMockCaptioner() *MockCaptioner {
	return &MockCaptioner{
		Captions: make(map[string]string),
	}
}

func (m *MockCaptioner) Caption(_ context.Context, images []imagefs.Image, prompt string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(images))
	for i, img := range images {
		names[i] = img.Filename
	}
	m.Batches = append(m.Batches, names)
	m.Prompts = append(m.Prompts, prompt)

	if m.FailOnCall > 0 && len(m.Batches) == m.FailOnCall {
		return nil, fmt.Errorf("%w: mock caption failure on call %d", models.ErrCaptioning, m.FailOnCall)
	}

	out := make([]string, 0, len(images))
	for _, img := range images {
		out = append(out, "</s><s>"+m.captionFor(img.Filename)+"<pad><pad>")
	}

	if m.ShortBy > 0 {
		out = out[:max(0, len(out)-m.ShortBy)]
	}
	return out, nil
}

// CaptionFor returns the cleaned caption the mock produces for filename.
func (m *MockCaptioner) CaptionFor(filename string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captionFor(filename)
}

func (m *MockCaptioner) captionFor(filename string) string {
	if c, ok := m.Captions[filename]; ok {
		return c
	}
	return "A photo of " + filename
}

// Calls returns the number of Caption calls made so far.
func (m *MockCaptioner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Batches)
}

func (m *MockCaptioner) Close() error {
	return nil
}

var _ models.Captioner = (*MockCaptioner)(nil)
