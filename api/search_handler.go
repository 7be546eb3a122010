package api

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"

	apisearch "github.com/papercomputeco/lookbook/api/search"
	"github.com/papercomputeco/lookbook/pkg/imagefs"
	"github.com/papercomputeco/lookbook/pkg/search"
	"github.com/papercomputeco/lookbook/pkg/vector"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleSearchEndpoint handles GET /v1/search requests.
// Query parameters:
//   - query (required): the search query text
//   - filter (optional): case-sensitive caption substring prefilter
//   - top_k (optional, default 5): number of results to return
func (s *Server) handleSearchEndpoint(c *fiber.Ctx) error {
	if s.config.Searcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "search is not configured",
		})
	}

	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	topK, ok := parseTopK(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "top_k must be a positive integer",
		})
	}

	output, err := s.config.Searcher.Search(c.UserContext(), apisearch.SearchInput{
		Query:  query,
		Filter: c.Query("filter"),
		TopK:   topK,
	})
	if err != nil {
		return s.searchError(c, err)
	}

	return c.JSON(output)
}

// handleKeywordEndpoint handles GET /v1/keyword requests over the caption
// text index. It takes the same query and top_k parameters as /v1/search.
func (s *Server) handleKeywordEndpoint(c *fiber.Ctx) error {
	if s.config.Searcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "search is not configured",
		})
	}

	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "query parameter is required",
		})
	}

	topK, ok := parseTopK(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "top_k must be a positive integer",
		})
	}

	output, err := s.config.Searcher.Keyword(c.UserContext(), query, topK)
	if err != nil {
		return s.searchError(c, err)
	}

	return c.JSON(output)
}

// handleImage serves an image file from the image root by filename.
func (s *Server) handleImage(c *fiber.Ctx) error {
	name := c.Params("filename")
	if name == "" || filepath.Base(name) != name || !imagefs.IsSupported(name) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid image filename"})
	}
	if s.config.ImageRoot == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "image root is not configured"})
	}

	path := filepath.Join(s.config.ImageRoot, name)
	if _, err := os.Stat(path); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "image not found"})
	}

	return c.SendFile(path)
}

func parseTopK(c *fiber.Ctx) (int, bool) {
	topK := search.DefaultK
	if topKStr := c.Query("top_k"); topKStr != "" {
		parsed, err := strconv.Atoi(topKStr)
		if err != nil || parsed <= 0 {
			return 0, false
		}
		topK = parsed
	}
	return topK, true
}

// searchError maps engine errors onto HTTP statuses.
func (s *Server) searchError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, search.ErrNotReady):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, search.ErrInvalidK),
		errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, vector.ErrUnsupportedFilter):
		status = fiber.StatusBadRequest
	}

	if status == fiber.StatusInternalServerError {
		s.logger.Error("search failed", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}
