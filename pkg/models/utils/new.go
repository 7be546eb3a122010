// Package modelutils builds model backends from provider names.
package modelutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/lookbook/pkg/models"
	"github.com/papercomputeco/lookbook/pkg/models/infinity"
	"github.com/papercomputeco/lookbook/pkg/models/ollama"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Dimensions   uint
	Logger       *slog.Logger
}

func NewEmbedder(o *NewEmbedderOpts) (models.Embedder, error) {
	switch o.ProviderType {
	case "infinity":
		e, err := infinity.NewEmbedder(infinity.EmbedderConfig{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: int(o.Dimensions),
			Logger:     o.Logger,
		})
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}

type NewCaptionerOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Concurrency  uint
	Logger       *slog.Logger
}

func NewCaptioner(o *NewCaptionerOpts) (models.Captioner, error) {
	switch o.ProviderType {
	case "ollama":
		c, err := ollama.NewCaptioner(ollama.CaptionerConfig{
			BaseURL:     o.TargetURL,
			Model:       o.Model,
			Concurrency: int(o.Concurrency),
			Logger:      o.Logger,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported captioning provider: %s", o.ProviderType)
	}
}

// NewProvider returns a lazily loading Provider wired to the configured
// backends.
func NewProvider(embed *NewEmbedderOpts, caption *NewCaptionerOpts, logger *slog.Logger) *models.Provider {
	return models.NewProvider(models.ProviderConfig{
		NewEmbedder:  func() (models.Embedder, error) { return NewEmbedder(embed) },
		NewCaptioner: func() (models.Captioner, error) { return NewCaptioner(caption) },
		Logger:       logger,
	})
}
