// Package curatecmder provides the curate command, which captions new images
// into the JSONL caption store.
package curatecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lookbook/cmd/lookbook/backends"
	"github.com/papercomputeco/lookbook/pkg/cliui"
	"github.com/papercomputeco/lookbook/pkg/config"
	"github.com/papercomputeco/lookbook/pkg/curator"
)

type curateCommander struct {
	images      string
	captions    string
	prompt      string
	batchSize   uint
	model       string
	target      string
	concurrency uint
	brokers     string
	topic       string
	watch       bool

	cfg    *config.Config
	logger *slog.Logger
}

const curateLongDesc string = `Caption every image in the image directory that is not yet in the
caption store.

Records are appended to the JSONL caption store as each batch completes, so an
interrupted run can be restarted and will only caption what is missing.

With --watch, curate keeps running and captions images as they are added to
the directory.

Examples:
  lookbook curate
  lookbook curate --images ./photos --captions ./photos.jsonl
  lookbook curate --watch`

const curateShortDesc string = "Caption new images into the caption store"

var curateFlags = []string{
	config.FlagImages,
	config.FlagCaptions,
	config.FlagPrompt,
	config.FlagBatchSize,
	config.FlagCaptioningModel,
	config.FlagCaptioningTgt,
	config.FlagCaptioningConc,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

func NewCurateCmd() *cobra.Command {
	cmder := &curateCommander{}

	cmd := &cobra.Command{
		Use:   "curate",
		Short: curateShortDesc,
		Long:  curateLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = backends.LoadConfig(cmd, curateFlags...)
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

	config.AddStringFlag(cmd, config.Flags, config.FlagImages, &cmder.images)
	config.AddStringFlag(cmd, config.Flags, config.FlagCaptions, &cmder.captions)
	config.AddStringFlag(cmd, config.Flags, config.FlagPrompt, &cmder.prompt)
	config.AddUintFlag(cmd, config.Flags, config.FlagBatchSize, &cmder.batchSize)
	config.AddStringFlag(cmd, config.Flags, config.FlagCaptioningModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagCaptioningTgt, &cmder.target)
	config.AddUintFlag(cmd, config.Flags, config.FlagCaptioningConc, &cmder.concurrency)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.topic)
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Keep running and caption images as they arrive")

	return cmd
}

func (c *curateCommander) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := backends.NewModels(c.cfg, c.logger)
	defer provider.Close()

	events, err := backends.NewPublisher(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer events.Close()

	cur, err := curator.New(curator.Config{
		Models:    provider,
		BatchSize: int(c.cfg.Pipeline.BatchSize),
		Prompt:    c.cfg.Captions.Prompt,
		Events:    events,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}

	if c.watch {
		return cur.Watch(ctx, c.cfg.Images.Root, c.cfg.Captions.Path)
	}

	var stats curator.Stats
	err = cliui.Step(os.Stderr, "Captioning "+c.cfg.Images.Root, func() error {
		var runErr error
		stats, runErr = cur.ProcessDirectory(ctx, c.cfg.Images.Root, c.cfg.Captions.Path)
		return runErr
	})
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintf(os.Stderr, "\n  %s\n", cliui.DimStyle.Render("Interrupted. Rerun curate to resume."))
		}
		return err
	}

	fmt.Println()
	fmt.Println(cliui.KeyValue("Discovered:", fmt.Sprint(stats.Discovered)))
	fmt.Println(cliui.KeyValue("Already captioned:", fmt.Sprint(stats.AlreadyProcessed)))
	fmt.Println(cliui.KeyValue("Captioned:", fmt.Sprint(stats.Captioned)))
	if stats.DecodeFailures > 0 || stats.CaptionFailures > 0 {
		fmt.Println(cliui.KeyValue("Unreadable:", fmt.Sprint(stats.DecodeFailures)))
		fmt.Println(cliui.KeyValue("Caption failures:", fmt.Sprint(stats.CaptionFailures)))
	}
	fmt.Println()

	return nil
}
