// Package lookbookcmder
package lookbookcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/lookbook/cmd/lookbook/config"
	curatecmder "github.com/papercomputeco/lookbook/cmd/lookbook/curate"
	indexcmder "github.com/papercomputeco/lookbook/cmd/lookbook/index"
	initcmder "github.com/papercomputeco/lookbook/cmd/lookbook/init"
	searchcmder "github.com/papercomputeco/lookbook/cmd/lookbook/search"
	servecmder "github.com/papercomputeco/lookbook/cmd/lookbook/serve"
	statuscmder "github.com/papercomputeco/lookbook/cmd/lookbook/status"
	versioncmder "github.com/papercomputeco/lookbook/cmd/lookbook/version"
	"github.com/papercomputeco/lookbook/pkg/logger"
)

const lookbookLongDesc string = `Lookbook is text-to-image search over a folder of images.

Build and query an index in three steps:
  lookbook curate      Caption new images into the caption store
  lookbook index       Embed captioned images into the vector index
  lookbook search      Search the index with a text query

Serve the index over HTTP and MCP with:
  lookbook serve`

const lookbookShortDesc string = "Lookbook - multimodal image search"

func NewLookbookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "lookbook",
		Short:        lookbookShortDesc,
		Long:         lookbookLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .lookbook/ config directory")
	cmd.PersistentFlags().String("log-format", string(logger.FormatAuto), "Log output format: auto, text, pretty or json")

	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(curatecmder.NewCurateCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
