package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent lookbook configuration stored as
// config.toml in the .lookbook/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Images      ImagesConfig      `toml:"images"`
	Captions    CaptionsConfig    `toml:"captions"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Captioning  CaptioningConfig  `toml:"captioning"`
	API         APIConfig         `toml:"api"`
	Events      EventsConfig      `toml:"events"`
}

// ImagesConfig holds the live image root. Search results resolve their
// serving path against it.
type ImagesConfig struct {
	Root string `toml:"root,omitempty"`
}

// CaptionsConfig holds the caption store location and the task prompt sent
// to the captioner.
type CaptionsConfig struct {
	Path   string `toml:"path,omitempty"`
	Prompt string `toml:"prompt,omitempty"`
}

// PipelineConfig holds settings shared by curation and indexing.
type PipelineConfig struct {
	BatchSize uint `toml:"batch_size,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Table    string `toml:"table,omitempty"`
}

// EmbeddingConfig holds image/text embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// CaptioningConfig holds caption provider settings.
type CaptioningConfig struct {
	Provider    string `toml:"provider,omitempty"`
	Target      string `toml:"target,omitempty"`
	Model       string `toml:"model,omitempty"`
	Concurrency uint   `toml:"concurrency,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventsConfig holds pipeline event publishing settings. Publishing is
// disabled when Brokers is empty.
type EventsConfig struct {
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"images.root":     stringKey(func(c *Config) *string { return &c.Images.Root }),
	"captions.path":   stringKey(func(c *Config) *string { return &c.Captions.Path }),
	"captions.prompt": stringKey(func(c *Config) *string { return &c.Captions.Prompt }),
	"pipeline.batch_size": uintKey("pipeline.batch_size",
		func(c *Config) *uint { return &c.Pipeline.BatchSize }),
	"vector_store.provider": stringKey(func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":   stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.table":    stringKey(func(c *Config) *string { return &c.VectorStore.Table }),
	"embedding.provider":    stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":      stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":       stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions",
		func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"captioning.provider": stringKey(func(c *Config) *string { return &c.Captioning.Provider }),
	"captioning.target":   stringKey(func(c *Config) *string { return &c.Captioning.Target }),
	"captioning.model":    stringKey(func(c *Config) *string { return &c.Captioning.Model }),
	"captioning.concurrency": uintKey("captioning.concurrency",
		func(c *Config) *uint { return &c.Captioning.Concurrency }),
	"api.listen":     stringKey(func(c *Config) *string { return &c.API.Listen }),
	"events.brokers": stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":   stringKey(func(c *Config) *string { return &c.Events.Topic }),
}
