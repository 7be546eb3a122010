// Package search provides the request and response shapes for image search.
// It is used by both the REST API endpoint and the MCP server tool.
package search

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/lookbook/pkg/search"
)

// SearchInput represents the input arguments for a search request.
type SearchInput struct {
	Query  string `json:"query" jsonschema:"natural-language description of the images to find"`
	Filter string `json:"filter,omitempty" jsonschema:"only return images whose caption contains this exact, case-sensitive text"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// SearchOutput represents the output of a search operation.
type SearchOutput struct {
	Query   string          `json:"query"`
	Filter  string          `json:"filter,omitempty"`
	Results []search.Result `json:"results"`
	Count   int             `json:"count"`
}

// Searcher runs searches for the API and MCP surfaces.
type Searcher struct {
	engine *search.Engine
	logger *slog.Logger
}

// NewSearcher wraps engine.
func NewSearcher(engine *search.Engine, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{engine: engine, logger: logger}
}

// Search runs a vector search. A non-positive TopK falls back to
// search.DefaultK.
func (s *Searcher) Search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	topK := in.TopK
	if topK <= 0 {
		topK = search.DefaultK
	}

	s.logger.Debug("search request", "query", in.Query, "filter", in.Filter, "top_k", topK)

	results, err := s.engine.Search(ctx, search.Request{
		Query:  in.Query,
		Filter: search.NewContains(in.Filter),
		K:      topK,
	})
	if err != nil {
		return nil, err
	}

	return &SearchOutput{
		Query:   in.Query,
		Filter:  in.Filter,
		Results: results,
		Count:   len(results),
	}, nil
}

// Keyword runs a full-text search over captions.
func (s *Searcher) Keyword(ctx context.Context, query string, topK int) (*SearchOutput, error) {
	if topK <= 0 {
		topK = search.DefaultK
	}

	s.logger.Debug("keyword request", "query", query, "top_k", topK)

	results, err := s.engine.Keyword(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	return &SearchOutput{
		Query:   query,
		Results: results,
		Count:   len(results),
	}, nil
}
