// Package ollama implements pkg/models' Captioner against Ollama's generate
// API and a vision model such as llava.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/lookbook/pkg/imagefs"
	"github.com/papercomputeco/lookbook/pkg/models"
)

const (
	// DefaultCaptionModel is the default vision model used for captions.
	DefaultCaptionModel = "llava"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultConcurrency is the number of in-flight requests per batch.
	DefaultConcurrency = 4
)

// taskInstructions maps caption task tokens to instructions a chat-tuned
// vision model follows. Prompts that are not task tokens are sent as-is.
var taskInstructions = map[string]string{
	"<CAPTION>":               "Describe this image in one sentence.",
	"<DETAILED_CAPTION>":      "Describe this image in a short paragraph.",
	"<MORE_DETAILED_CAPTION>": "Describe this image in detail, including every garment, its colours, materials, patterns and how it is styled.",
}

// Captioner wraps Ollama's generate API.
type Captioner struct {
	baseURL     string
	model       string
	concurrency int
	httpClient  *http.Client
	logger      *slog.Logger
}

// CaptionerConfig holds configuration for the Ollama captioner.
type CaptionerConfig struct {
	// BaseURL is the Ollama API URL (e.g., "http://localhost:11434").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the vision model to use (e.g., "llava", "moondream").
	// Defaults to DefaultCaptionModel if empty.
	Model string

	// Concurrency bounds parallel requests within one batch.
	// Defaults to DefaultConcurrency if zero.
	Concurrency int

	Logger *slog.Logger
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// NewCaptioner creates a new captioner using Ollama's generate API.
func NewCaptioner(cfg CaptionerConfig) (*Captioner, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultCaptionModel
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Captioner{
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		concurrency: concurrency,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		logger: logger,
	}, nil
}

// Caption generates one raw caption per image. Requests fan out up to the
// configured concurrency; the first failure cancels the rest of the batch.
func (c *Captioner) Caption(ctx context.Context, images []imagefs.Image, prompt string) ([]string, error) {
	instruction := prompt
	if mapped, ok := taskInstructions[prompt]; ok {
		instruction = mapped
	}

	out := make([]string, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, img := range images {
		g.Go(func() error {
			caption, err := c.generate(gctx, img, instruction)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", models.ErrCaptioning, img.Filename, err)
			}
			out[i] = caption
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("captioned batch", "model", c.model, "images", len(images))
	return out, nil
}

func (c *Captioner) generate(ctx context.Context, img imagefs.Image, instruction string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: instruction,
		Images: []string{base64.StdEncoding.EncodeToString(img.Data)},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(body))
	}

	var response generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("ollama error: %s", response.Error)
	}

	return response.Response, nil
}

// Close releases resources held by the captioner.
func (c *Captioner) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ models.Captioner = (*Captioner)(nil)
