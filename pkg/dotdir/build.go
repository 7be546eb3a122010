package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	buildFile = "build.json"
)

// BuildState records the outcome of the most recent index build so that
// status and search can report what the table was built from.
type BuildState struct {
	BuildID     string    `json:"build_id"`
	Table       string    `json:"table"`
	Provider    string    `json:"provider"`
	CaptionPath string    `json:"caption_path"`
	Rows        int       `json:"rows"`
	Records     int       `json:"records"`
	Missing     int       `json:"missing"`
	FinishedAt  time.Time `json:"finished_at"`
}

// LoadBuildState loads the build state from a target .lookbook/build.json.
// Returns nil, nil if no build has been recorded.
func (m *Manager) LoadBuildState(overrideDir string) (*BuildState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, buildFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading build state: %w", err)
	}

	state := &BuildState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing build state: %w", err)
	}

	return state, nil
}

// SaveBuildState persists the build state to a target .lookbook/build.json.
func (m *Manager) SaveBuildState(state *BuildState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil build state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling build state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, buildFile), data, 0o600); err != nil {
		return fmt.Errorf("writing build state: %w", err)
	}

	return nil
}

// ClearBuildState removes the build state file. Returns nil if it does not
// exist.
func (m *Manager) ClearBuildState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, buildFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing build state: %w", err)
	}

	return nil
}
