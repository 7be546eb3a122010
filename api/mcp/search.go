package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apisearch "github.com/papercomputeco/lookbook/api/search"
	"github.com/papercomputeco/lookbook/pkg/search"
)

var (
	searchToolName    = "image_search"
	searchDescription = "Search the image catalogue with a natural-language description. " +
		"Optionally restrict results to images whose caption contains an exact, case-sensitive phrase. " +
		"Returns the closest images with their captions, file paths and similarity scores."

	keywordToolName    = "caption_search"
	keywordDescription = "Full-text keyword search over image captions. " +
		"Returns images whose captions best match the query terms."
)

// KeywordInput represents the input arguments for the caption search tool.
type KeywordInput struct {
	Query string `json:"query" jsonschema:"keywords to match against image captions"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
}

// handleSearch processes an image search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input apisearch.SearchInput) (*mcp.CallToolResult, apisearch.SearchOutput, error) {
	output, err := s.config.Searcher.Search(ctx, input)
	if err != nil {
		s.config.Logger.Error("MCP image search failed", "query", input.Query, "error", err)
		return toolError("Search failed", err), emptyOutput(input.Query), nil
	}
	return s.toolResult(*output)
}

// handleKeyword processes a caption keyword search request.
func (s *Server) handleKeyword(ctx context.Context, _ *mcp.CallToolRequest, input KeywordInput) (*mcp.CallToolResult, apisearch.SearchOutput, error) {
	output, err := s.config.Searcher.Keyword(ctx, input.Query, input.TopK)
	if err != nil {
		s.config.Logger.Error("MCP caption search failed", "query", input.Query, "error", err)
		return toolError("Caption search failed", err), emptyOutput(input.Query), nil
	}
	return s.toolResult(*output)
}

// toolResult serializes the structured output as JSON for the text field.
// MCP tools returning structured content should also return
// serialized JSON in a TextContent block for backwards compatibility
func (s *Server) toolResult(output apisearch.SearchOutput) (*mcp.CallToolResult, apisearch.SearchOutput, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		s.config.Logger.Error("failed to marshal search output", "error", err)
		return toolError("Failed to serialize results", err), emptyOutput(output.Query), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func toolError(prefix string, err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %v", prefix, err)},
		},
	}
}

func emptyOutput(query string) apisearch.SearchOutput {
	return apisearch.SearchOutput{Query: query, Results: []search.Result{}}
}
