// Package backends resolves command configuration and opens the model
// provider and vector store shared by lookbook commands.
package backends

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lookbook/pkg/config"
	"github.com/papercomputeco/lookbook/pkg/eventstream"
	"github.com/papercomputeco/lookbook/pkg/eventstream/kafka"
	"github.com/papercomputeco/lookbook/pkg/eventstream/nop"
	"github.com/papercomputeco/lookbook/pkg/logger"
	"github.com/papercomputeco/lookbook/pkg/models"
	modelutils "github.com/papercomputeco/lookbook/pkg/models/utils"
	"github.com/papercomputeco/lookbook/pkg/vector"
	vectorutils "github.com/papercomputeco/lookbook/pkg/vector/utils"
)

// LoadConfig resolves the effective configuration for cmd. Registered flags
// named by flagKeys take precedence over the environment, config.toml and
// defaults.
func LoadConfig(cmd *cobra.Command, flagKeys ...string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	return config.FromViper(v), nil
}

// NewLogger builds the command logger from the --debug and --log-format
// flags. Records are tagged with the command name.
func NewLogger(cmd *cobra.Command) (*slog.Logger, error) {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return nil, fmt.Errorf("could not get debug flag: %w", err)
	}

	// Commands built outside the root command may not carry --log-format.
	raw, _ := cmd.Flags().GetString("log-format")
	format, err := logger.ParseFormat(raw)
	if err != nil {
		return nil, err
	}

	return logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(format),
		logger.WithWriter(os.Stderr),
		logger.WithComponent(cmd.Name()),
	), nil
}

// NewModels returns a lazily loading provider for the configured embedding
// and captioning backends.
func NewModels(cfg *config.Config, log *slog.Logger) *models.Provider {
	return modelutils.NewProvider(
		&modelutils.NewEmbedderOpts{
			ProviderType: cfg.Embedding.Provider,
			TargetURL:    cfg.Embedding.Target,
			Model:        cfg.Embedding.Model,
			Dimensions:   cfg.Embedding.Dimensions,
			Logger:       log,
		},
		&modelutils.NewCaptionerOpts{
			ProviderType: cfg.Captioning.Provider,
			TargetURL:    cfg.Captioning.Target,
			Model:        cfg.Captioning.Model,
			Concurrency:  cfg.Captioning.Concurrency,
			Logger:       log,
		},
		log,
	)
}

// NewStore opens the configured vector store.
func NewStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (vector.Store, error) {
	store, err := vectorutils.NewVectorStore(ctx, &vectorutils.NewVectorStoreOpts{
		ProviderType: cfg.VectorStore.Provider,
		TargetURL:    cfg.VectorStore.Target,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	log.Debug("opened vector store",
		"provider", cfg.VectorStore.Provider,
		"dimensions", cfg.Embedding.Dimensions,
	)
	return store, nil
}

// NewPublisher returns the configured pipeline event publisher, or a no-op
// publisher when no brokers are configured.
func NewPublisher(cfg *config.Config, log *slog.Logger) (eventstream.Publisher, error) {
	var brokers []string
	for _, b := range strings.Split(cfg.Events.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   cfg.Events.Topic,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	return p, nil
}
