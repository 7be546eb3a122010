// Package configcmder provides the config command for managing persistent
// lookbook configuration stored in the .lookbook/ directory.
package configcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/lookbook/pkg/config"
)

const configLongDesc string = `Manage persistent lookbook configuration.

Configuration is stored as config.toml in the .lookbook/ directory and
provides default values for command flags. CLI flags and LOOKBOOK_*
environment variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  images.root, captions.path, captions.prompt, pipeline.batch_size,
  vector_store.provider, vector_store.target, vector_store.table,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  captioning.provider, captioning.target, captioning.model, captioning.concurrency,
  api.listen, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  lookbook config set <key> <value>    Set a configuration value
  lookbook config get <key>            Get a configuration value
  lookbook config list                 List all configuration values

Examples:
  lookbook config set images.root ./photos
  lookbook config set vector_store.provider postgres
  lookbook config get embedding.model
  lookbook config list`

const configShortDesc string = "Manage persistent lookbook configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func validKeyArgs(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
