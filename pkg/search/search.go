// Package search answers natural-language queries against a built vector
// table.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/lookbook/pkg/models"
	"github.com/papercomputeco/lookbook/pkg/vector"
)

// DefaultK is the number of results returned when the caller does not ask
// for a specific count.
const DefaultK = 5

var (
	// ErrNotReady is returned when the table has not been built yet.
	ErrNotReady = errors.New("index not built")

	// ErrInvalidK is returned for a non-positive result count.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query is empty")
)

// Config configures an Engine.
type Config struct {
	Store  vector.Store
	Models *models.Provider

	// Table is the vector table to search.
	Table string

	// ImageRoot is the live image directory. Result paths are resolved
	// against it rather than taken from the table.
	ImageRoot string

	Logger *slog.Logger
}

// Request is a single search.
type Request struct {
	Query string

	// Filter restricts results to rows whose caption contains a substring.
	// Nil means no filter.
	Filter *vector.Contains

	K int
}

// Result is one ranked match.
type Result struct {
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
	Caption  string  `json:"caption"`
	Path     string  `json:"path"`
}

// Engine runs searches. It is safe for concurrent use.
type Engine struct {
	store     vector.Store
	models    *models.Provider
	table     string
	imageRoot string
	logger    *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(c Config) (*Engine, error) {
	if c.Store == nil {
		return nil, errors.New("search engine requires a vector store")
	}
	if c.Models == nil {
		return nil, errors.New("search engine requires a model provider")
	}
	if err := vector.ValidateTableName(c.Table); err != nil {
		return nil, err
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:     c.Store,
		models:    c.Models,
		table:     c.Table,
		imageRoot: c.ImageRoot,
		logger:    logger,
	}, nil
}

// NewContains returns a caption filter for substring, or nil when substring
// is empty.
func NewContains(substring string) *vector.Contains {
	if substring == "" {
		return nil
	}
	return &vector.Contains{Field: vector.CaptionField, Substring: substring}
}

// Search embeds req.Query and returns the req.K nearest images by cosine
// similarity, highest score first. A filter is applied before ranking, so
// up to K matching rows come back whenever that many exist.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	if req.K <= 0 {
		return nil, ErrInvalidK
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	if req.Filter != nil && req.Filter.Substring == "" {
		req.Filter = nil
	}

	table, err := e.open(ctx)
	if err != nil {
		return nil, err
	}

	embedder, err := e.models.Embedder()
	if err != nil {
		return nil, err
	}

	raw, err := embedder.EmbedText(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	query, err := models.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := table.Search(ctx, vector.Query{
		Vector: query,
		Filter: req.Filter,
		Limit:  req.K,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Filename: h.Filename,
			Score:    1 - h.Distance,
			Caption:  h.Caption,
			Path:     e.resolve(h.Filename),
		}
	}

	e.logger.Debug("search complete",
		"query", req.Query,
		"filtered", req.Filter != nil,
		"k", req.K,
		"results", len(results),
	)

	return results, nil
}

// Keyword runs a full-text query over the caption index and returns up to k
// matches, most relevant first. Scores are the backend's relevance scores
// and are not comparable with Search scores.
func (e *Engine) Keyword(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyQuery
	}

	table, err := e.open(ctx)
	if err != nil {
		return nil, err
	}

	hits, err := table.TextSearch(ctx, text, k)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			Filename: h.Filename,
			Score:    h.Score,
			Caption:  h.Caption,
			Path:     e.resolve(h.Filename),
		}
	}
	return results, nil
}

// open looks the table up on every call so a rebuild is picked up without
// restarting.
func (e *Engine) open(ctx context.Context) (vector.Table, error) {
	table, err := e.store.OpenTable(ctx, e.table)
	if errors.Is(err, vector.ErrTableNotFound) {
		return nil, fmt.Errorf("%w: table %s does not exist, run the indexer first", ErrNotReady, e.table)
	}
	if err != nil {
		return nil, err
	}
	return table, nil
}

// resolve returns where filename lives under the current image root.
func (e *Engine) resolve(filename string) string {
	return filepath.Join(e.imageRoot, filename)
}
