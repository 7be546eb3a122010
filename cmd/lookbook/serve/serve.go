// Package servecmder provides the serve command, which runs the lookbook
// search API and MCP server.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/lookbook/api"
	apisearch "github.com/papercomputeco/lookbook/api/search"
	"github.com/papercomputeco/lookbook/cmd/lookbook/backends"
	"github.com/papercomputeco/lookbook/pkg/config"
	"github.com/papercomputeco/lookbook/pkg/search"
)

type serveCommander struct {
	listen     string
	images     string
	table      string
	provider   string
	target     string
	model      string
	dimensions uint

	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run the lookbook API server.

Endpoints:
  GET  /ping                   Health check
  GET  /v1/search              Vector search (query, filter, top_k)
  GET  /v1/keyword             Full-text caption search (query, top_k)
  GET  /v1/images/<filename>   Serve an image from the image root
  POST /mcp                    MCP streamable HTTP endpoint

Search endpoints answer 503 until "lookbook index" has built the table.

Examples:
  lookbook serve
  lookbook serve --listen :9000 --images ./photos`

const serveShortDesc string = "Run the lookbook API server"

var serveFlags = []string{
	config.FlagListen,
	config.FlagImages,
	config.FlagTable,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = backends.LoadConfig(cmd, serveFlags...)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagImages, &cmder.images)
	config.AddStringFlag(cmd, config.Flags, config.FlagTable, &cmder.table)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.dimensions)

	return cmd
}

func (c *serveCommander) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backends.NewStore(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	provider := backends.NewModels(c.cfg, c.logger)
	defer provider.Close()

	engine, err := search.NewEngine(search.Config{
		Store:     store,
		Models:    provider,
		Table:     c.cfg.VectorStore.Table,
		ImageRoot: c.cfg.Images.Root,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
		Searcher:   apisearch.NewSearcher(engine, c.logger),
		ImageRoot:  c.cfg.Images.Root,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down API server")
		return server.Shutdown()
	})

	return g.Wait()
}
