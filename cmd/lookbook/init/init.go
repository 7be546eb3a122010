// Package initcmder provides the init command for initializing a local
// .lookbook directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/lookbook/pkg/config"
)

const (
	dirName = ".lookbook"
)

const initLongDesc string = `Initialize a new .lookbook/ directory in the current working directory.

Creates a local .lookbook/ directory that takes precedence over the default
~/.lookbook/ directory for configuration, build state and the index build
lock. This keeps one image collection per project directory.

Use --preset to write a starting config.toml:
  local      SQLite + sqlite-vec index in data/lookbook.db
  postgres   PostgreSQL + pgvector index

Examples:
  lookbook init
  lookbook init --preset postgres`

const initShortDesc string = "Initialize a local .lookbook/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", fmt.Sprintf("Write a preset config.toml (%s)", strings.Join(config.ValidPresetNames(), ", ")))

	return cmd
}

func runInit(w io.Writer, preset string) error {
	var cfg *config.Config
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		fmt.Fprintf(w, "Already initialized: %s\n", dir)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking .lookbook directory: %w", err)
	default:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .lookbook directory: %w", err)
		}
		fmt.Fprintf(w, "Initialized .lookbook directory: %s\n", dir)
	}

	if cfg == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing preset config: %w", err)
	}

	fmt.Fprintf(w, "Wrote %s preset to %s\n", preset, cfger.GetTarget())
	return nil
}
