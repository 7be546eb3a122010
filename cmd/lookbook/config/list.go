package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lookbook/pkg/cliui"
	"github.com/papercomputeco/lookbook/pkg/config"
)

const listLongDesc string = `List every configuration key with its effective value.

Keys are grouped by their config.toml section. Values that match the built-in
default are marked (default), and keys with no value and no default are shown
as <not set>.

Examples:
  lookbook config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	printTarget(w, cfger.GetTarget())

	keys := config.ValidConfigKeys()
	width := 0
	for _, k := range keys {
		_, field, _ := strings.Cut(k, ".")
		width = max(width, len(field))
	}

	section := ""
	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		def, err := config.DefaultConfigValue(key)
		if err != nil {
			return err
		}

		name, field, _ := strings.Cut(key, ".")
		if name != section {
			if section != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintln(w, cliui.HeaderStyle.Render("["+name+"]"))
			section = name
		}

		switch {
		case value == "":
			fmt.Fprintf(w, "  %-*s = %s\n", width, field, cliui.DimStyle.Render("<not set>"))
		case value == def:
			fmt.Fprintf(w, "  %-*s = %q %s\n", width, field, value, cliui.DimStyle.Render("(default)"))
		default:
			fmt.Fprintf(w, "  %-*s = %q\n", width, field, value)
		}
	}

	return nil
}
