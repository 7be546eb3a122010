// Package mcp provides an MCP (Model Context Protocol) server for lookbook
// image search.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apisearch "github.com/papercomputeco/lookbook/api/search"
	"github.com/papercomputeco/lookbook/pkg/utils"
)

// Config wires the MCP tools to a search backend.
type Config struct {
	Searcher *apisearch.Searcher
	Logger   *slog.Logger
}

// Server exposes lookbook search as MCP tools over streamable HTTP.
type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer registers the image_search and caption_search tools.
func NewServer(c Config) (*Server, error) {
	if c.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Server{config: c}
	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{Name: "lookbook", Version: utils.Version},
		&mcp.ServerOptions{},
	)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        searchToolName,
		Description: searchDescription,
	}, s.handleSearch)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        keywordToolName,
		Description: keywordDescription,
	}, s.handleKeyword)

	// Every request is independent, so no session state is kept.
	s.handler = mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return s.mcpServer },
		&mcp.StreamableHTTPOptions{Stateless: true},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying MCP server, for in-process transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
