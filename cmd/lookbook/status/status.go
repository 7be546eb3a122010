// Package statuscmder provides the status command for displaying the most
// recent index build and the state of the vector store.
package statuscmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lookbook/cmd/lookbook/backends"
	"github.com/papercomputeco/lookbook/pkg/cliui"
	"github.com/papercomputeco/lookbook/pkg/config"
	"github.com/papercomputeco/lookbook/pkg/dotdir"
	"github.com/papercomputeco/lookbook/pkg/utils"
)

const statusLongDesc string = `Show the state of the image index.

Reads the .lookbook/ directory (or ~/.lookbook/) to display the most recent
index build, then connects to the configured vector store to report which
tables exist and how many rows the configured table holds.

Examples:
  lookbook status`

const statusShortDesc string = "Show index build state"

var statusFlags = []string{
	config.FlagTable,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingDims,
}

type statusCommander struct {
	table      string
	provider   string
	target     string
	dimensions uint

	configDir string
	cfg       *config.Config
	logger    *slog.Logger
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			var err error
			cmder.cfg, err = backends.LoadConfig(cmd, statusFlags...)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.logger, err = backends.NewLogger(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTable, &cmder.table)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.target)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.dimensions)

	return cmd
}

func (c *statusCommander) run(ctx context.Context, w io.Writer) error {
	state, err := dotdir.NewManager().LoadBuildState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading build state: %w", err)
	}

	fmt.Fprintln(w)
	if state == nil {
		fmt.Fprintf(w, "  %s No index build recorded. Run \"lookbook index\" to build one.\n",
			cliui.DimStyle.Render("●"))
	} else {
		fmt.Fprintln(w, cliui.KeyValue("Last build:  ", state.BuildID))
		fmt.Fprintln(w, cliui.KeyValue("Table:       ", state.Table))
		fmt.Fprintln(w, cliui.KeyValue("Provider:    ", state.Provider))
		fmt.Fprintln(w, cliui.KeyValue("Captions:    ", utils.Truncate(state.CaptionPath, 72)))
		fmt.Fprintln(w, cliui.KeyValue("Rows:        ", strconv.Itoa(state.Rows)))
		fmt.Fprintln(w, cliui.KeyValue("Missing:     ", strconv.Itoa(state.Missing)))
		fmt.Fprintln(w, cliui.KeyValue("Finished:    ", state.FinishedAt.Local().Format(time.RFC1123)))
	}
	fmt.Fprintln(w)

	c.printStore(ctx, w)
	return nil
}

// printStore reports the live store. Connection failures are shown rather
// than returned so status stays useful while the store is down.
func (c *statusCommander) printStore(ctx context.Context, w io.Writer) {
	store, err := backends.NewStore(ctx, c.cfg, c.logger)
	if err != nil {
		fmt.Fprintf(w, "  %s %s\n\n", cliui.FailMark, cliui.DimStyle.Render(err.Error()))
		return
	}
	defer store.Close()

	names, err := store.TableNames(ctx)
	if err != nil {
		fmt.Fprintf(w, "  %s %s\n\n", cliui.FailMark, cliui.DimStyle.Render(err.Error()))
		return
	}
	fmt.Fprintln(w, cliui.KeyValue("Tables:      ", strings.Join(names, ", ")))

	table, err := store.OpenTable(ctx, c.cfg.VectorStore.Table)
	if err != nil {
		fmt.Fprintf(w, "  %s %s %s\n\n", cliui.FailMark, c.cfg.VectorStore.Table, cliui.DimStyle.Render("(not built)"))
		return
	}

	rows, err := table.Count(ctx)
	if err != nil {
		fmt.Fprintf(w, "  %s %s\n\n", cliui.FailMark, cliui.DimStyle.Render(err.Error()))
		return
	}
	fmt.Fprintf(w, "  %s %s %s\n\n",
		cliui.SuccessMark,
		c.cfg.VectorStore.Table,
		cliui.DimStyle.Render(fmt.Sprintf("(%d rows, build %s)", rows, table.BuildID())),
	)
}
