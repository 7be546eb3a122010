// Package dotdir manages the .lookbook/ and ~/.lookbook directories.
//
// The directory holds config.toml, the index build lock and the record of the
// most recent index build.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the lookbook directory.
	dirName = ".lookbook"

	// HomeEnv names a lookbook directory to use when no override is given.
	HomeEnv = "LOOKBOOK_HOME"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .lookbook/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. $LOOKBOOK_HOME
//  3. Local ./.lookbook/ dir
//  4. Home ~/.lookbook/ dir (created if missing)
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case os.Getenv(HomeEnv) != "":
		dir = os.Getenv(HomeEnv)

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating lookbook directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// LockPath returns the path of the index build lock file inside the target
// directory.
func (m *Manager) LockPath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "index.lock"), nil
}

// localDirExists checks whether a .lookbook/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
