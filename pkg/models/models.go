// Package models defines the caption and embedding model contracts the
// pipeline drives, and the Provider that loads them once per process.
package models

import (
	"context"
	"errors"

	"github.com/papercomputeco/lookbook/pkg/imagefs"
)

var (
	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrCaptioning is returned when caption generation fails.
	ErrCaptioning = errors.New("captioning failed")

	// ErrDegenerateVector is returned by Normalize for vectors with a zero
	// or non-finite norm.
	ErrDegenerateVector = errors.New("degenerate vector")

	// ErrNotConfigured is returned by a Provider with no factory for the
	// requested model.
	ErrNotConfigured = errors.New("model not configured")
)

// Embedder maps images and text into one shared vector space.
type Embedder interface {
	// EmbedImages returns one vector per image, in input order.
	EmbedImages(ctx context.Context, images []imagefs.Image) ([][]float32, error)

	// EmbedText returns the vector for a text query.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// ModelName identifies the model, so cached vectors never cross models.
	ModelName() string

	// Close releases any resources held by the embedder.
	Close() error
}

// Captioner describes images in free text.
type Captioner interface {
	// Caption returns one raw caption per image, in input order. prompt is
	// the task instruction. Output is uncleaned; see CleanCaption.
	Caption(ctx context.Context, images []imagefs.Image, prompt string) ([]string, error)

	// Close releases any resources held by the captioner.
	Close() error
}
