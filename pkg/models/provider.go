package models

import (
	"errors"
	"log/slog"
	"sync"
)

// ProviderConfig holds the factories a Provider loads models from. Either
// factory may be nil when a command never needs that model.
type ProviderConfig struct {
	NewEmbedder  func() (Embedder, error)
	NewCaptioner func() (Captioner, error)

	// QueryCacheSize bounds the text embedding cache. Zero uses
	// DefaultQueryCacheSize.
	QueryCacheSize int

	Logger *slog.Logger
}

// Provider constructs each model on first use and hands the same instance
// to every caller afterwards. A failed load is remembered, not retried.
type Provider struct {
	embedder  func() (Embedder, error)
	captioner func() (Captioner, error)

	mu     sync.Mutex
	loaded []interface{ Close() error }
}

// NewProvider creates a Provider. Nothing is loaded until requested.
func NewProvider(c ProviderConfig) *Provider {
	p := &Provider{}

	p.embedder = sync.OnceValues(func() (Embedder, error) {
		if c.NewEmbedder == nil {
			return nil, errors.Join(ErrNotConfigured, errors.New("no embedder factory"))
		}
		e, err := c.NewEmbedder()
		if err != nil {
			return nil, err
		}
		if c.Logger != nil {
			c.Logger.Info("embedding model loaded", "model", e.ModelName())
		}
		cached := NewCachedEmbedder(e, c.QueryCacheSize)
		p.track(cached)
		return cached, nil
	})

	p.captioner = sync.OnceValues(func() (Captioner, error) {
		if c.NewCaptioner == nil {
			return nil, errors.Join(ErrNotConfigured, errors.New("no captioner factory"))
		}
		cp, err := c.NewCaptioner()
		if err != nil {
			return nil, err
		}
		if c.Logger != nil {
			c.Logger.Info("caption model loaded")
		}
		p.track(cp)
		return cp, nil
	})

	return p
}

// Embedder returns the shared embedder, loading it on first call. Text
// embeddings are served through an LRU cache.
func (p *Provider) Embedder() (Embedder, error) {
	return p.embedder()
}

// Captioner returns the shared captioner, loading it on first call.
func (p *Provider) Captioner() (Captioner, error) {
	return p.captioner()
}

func (p *Provider) track(c interface{ Close() error }) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = append(p.loaded, c)
}

// Close releases every model that was loaded.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, c := range p.loaded {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.loaded = nil
	return errors.Join(errs...)
}
