// Package indexcmder provides the index command, which rebuilds the vector
// table from the caption store.
package indexcmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lookbook/cmd/lookbook/backends"
	"github.com/papercomputeco/lookbook/pkg/cliui"
	"github.com/papercomputeco/lookbook/pkg/config"
	"github.com/papercomputeco/lookbook/pkg/dotdir"
	"github.com/papercomputeco/lookbook/pkg/indexer"
)

type indexCommander struct {
	captions   string
	batchSize  uint
	table      string
	provider   string
	target     string
	model      string
	dimensions uint
	brokers    string
	topic      string

	configDir string
	cfg       *config.Config
	logger    *slog.Logger
}

const indexLongDesc string = `Build the image index from the caption store.

Every record in the caption store whose image is still on disk is embedded
and bulk-loaded into a fresh vector table, then a full-text index is built
over the captions. An existing table of the same name is dropped first.

Only one build runs at a time per lookbook directory.

Examples:
  lookbook index
  lookbook index --captions ./photos.jsonl --table spring_catalog
  lookbook index --vector-store-provider postgres --vector-store-target postgres://localhost/lookbook`

const indexShortDesc string = "Build the image index"

var indexFlags = []string{
	config.FlagCaptions,
	config.FlagBatchSize,
	config.FlagTable,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			var err error
			cmder.cfg, err = backends.LoadConfig(cmd, indexFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.logger, err = backends.NewLogger(cmd)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagCaptions, &cmder.captions)
	config.AddUintFlag(cmd, config.Flags, config.FlagBatchSize, &cmder.batchSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagTable, &cmder.table)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.dimensions)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.topic)

	return cmd
}

func (c *indexCommander) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ddm := dotdir.NewManager()
	lockPath, err := ddm.LockPath(c.configDir)
	if err != nil {
		return err
	}

	store, err := backends.NewStore(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	provider := backends.NewModels(c.cfg, c.logger)
	defer provider.Close()

	events, err := backends.NewPublisher(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer events.Close()

	ix, err := indexer.New(indexer.Config{
		Store:     store,
		Models:    provider,
		Table:     c.cfg.VectorStore.Table,
		BatchSize: int(c.cfg.Pipeline.BatchSize),
		LockPath:  lockPath,
		Events:    events,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	var result *indexer.Result
	err = cliui.Step(os.Stderr, "Building index "+c.cfg.VectorStore.Table, func() error {
		var buildErr error
		result, buildErr = ix.BuildIndex(ctx, c.cfg.Captions.Path)
		return buildErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n\n", result.Summary())

	state := &dotdir.BuildState{
		BuildID:     result.BuildID,
		Table:       result.Table,
		Provider:    c.cfg.VectorStore.Provider,
		CaptionPath: c.cfg.Captions.Path,
		Rows:        result.Rows,
		Records:     result.Records,
		Missing:     result.MissingAssets,
		FinishedAt:  time.Now().UTC(),
	}
	if err := ddm.SaveBuildState(state, c.configDir); err != nil {
		c.logger.Warn("could not record build state", "error", err)
	}

	return nil
}
