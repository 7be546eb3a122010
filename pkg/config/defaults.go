package config

const (
	defaultImagesRoot    = "data/images"
	defaultCaptionsPath  = "data/metadata_captions_clean.jsonl"
	defaultCaptionPrompt = "<MORE_DETAILED_CAPTION>"
	defaultBatchSize     = 64

	defaultVectorProvider = "sqlite"
	defaultVectorTarget   = "data/lookbook.db"
	defaultVectorTable    = "fashion_items"

	defaultEmbeddingProvider   = "infinity"
	defaultEmbeddingTarget     = "http://localhost:7997"
	defaultEmbeddingModel      = "google/siglip-so400m-patch14-384"
	defaultEmbeddingDimensions = 1152

	defaultCaptioningProvider    = "ollama"
	defaultCaptioningTarget      = "http://localhost:11434"
	defaultCaptioningModel       = "llava"
	defaultCaptioningConcurrency = 4

	defaultAPIListen = ":8090"

	defaultEventsTopic = "lookbook.events"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Images: ImagesConfig{
			Root: defaultImagesRoot,
		},
		Captions: CaptionsConfig{
			Path:   defaultCaptionsPath,
			Prompt: defaultCaptionPrompt,
		},
		Pipeline: PipelineConfig{
			BatchSize: defaultBatchSize,
		},
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
			Target:   defaultVectorTarget,
			Table:    defaultVectorTable,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Captioning: CaptioningConfig{
			Provider:    defaultCaptioningProvider,
			Target:      defaultCaptioningTarget,
			Model:       defaultCaptioningModel,
			Concurrency: defaultCaptioningConcurrency,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Events: EventsConfig{
			Topic: defaultEventsTopic,
		},
	}
}
