// Package infinity implements pkg/models' Embedder against an
// OpenAI-compatible /embeddings endpoint that accepts a modality, such as
// infinity serving a SigLIP or CLIP model.
package infinity

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/papercomputeco/lookbook/pkg/imagefs"
	"github.com/papercomputeco/lookbook/pkg/models"
)

const (
	// DefaultEmbeddingModel is the default image/text model.
	DefaultEmbeddingModel = "google/siglip-so400m-patch14-384"

	// DefaultBaseURL is the default infinity API URL.
	DefaultBaseURL = "http://localhost:7997"
)

// Embedder wraps the embeddings API for both image and text inputs.
type Embedder struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	logger     *slog.Logger
}

// EmbedderConfig holds configuration for the infinity embedder.
type EmbedderConfig struct {
	// BaseURL is the API URL (e.g., "http://localhost:7997").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the embedding model to use.
	// Defaults to DefaultEmbeddingModel if empty.
	Model string

	// Dimensions, when set, is checked against every returned vector.
	Dimensions int

	Logger *slog.Logger
}

type embedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	Modality       string   `json:"modality"`
	EncodingFormat string   `json:"encoding_format"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewEmbedder creates a new embedder.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Embedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: cfg.Dimensions,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}, nil
}

// EmbedImages embeds a batch of images in one request. Images travel as
// data URIs.
func (e *Embedder) EmbedImages(ctx context.Context, images []imagefs.Image) ([][]float32, error) {
	if len(images) == 0 {
		return [][]float32{}, nil
	}

	inputs := make([]string, len(images))
	for i, img := range images {
		inputs[i] = "data:" + img.MimeType() + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	}

	vecs, err := e.embed(ctx, "image", inputs)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("embedded image batch", "model", e.model, "images", len(images))
	return vecs, nil
}

// EmbedText embeds a single query string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, "text", []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) embed(ctx context.Context, modality string, inputs []string) ([][]float32, error) {
	jsonBody, err := json.Marshal(embedRequest{
		Model:          e.model,
		Input:          inputs,
		Modality:       modality,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", models.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", models.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", models.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: embeddings endpoint returned status %d: %s", models.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", models.ErrEmbedding, err)
	}

	if len(embedResp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", models.ErrEmbedding, len(inputs), len(embedResp.Data))
	}

	sort.Slice(embedResp.Data, func(i, j int) bool { return embedResp.Data[i].Index < embedResp.Data[j].Index })

	out := make([][]float32, len(embedResp.Data))
	for i, d := range embedResp.Data {
		if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
			return nil, fmt.Errorf("%w: expected %d dimensions, got %d", models.ErrEmbedding, e.dimensions, len(d.Embedding))
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// ModelName returns the configured model.
func (e *Embedder) ModelName() string {
	return e.model
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

var _ models.Embedder = (*Embedder)(nil)
