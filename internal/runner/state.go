package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the runner's persisted view of the latest passes, kept in
// .looter/state.json so `looter status` can report on a running loop.
type State struct {
	PID             int            `json:"pid"`
	Backend         string         `json:"backend"`
	Loop            bool           `json:"loop"`
	Passes          int            `json:"passes"`
	ConsecutiveErrs int            `json:"consecutive_errors"`
	StartedAt       time.Time      `json:"started_at"`
	LastPassAt      time.Time      `json:"last_pass_at"`
	NextRunAt       time.Time      `json:"next_run_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	Passed          bool           `json:"passed"`
	LastPassID      string         `json:"last_pass_id,omitempty"`
	LastError       string         `json:"last_error,omitempty"`
	Categories      map[string]int `json:"categories,omitempty"`
	Outcomes        map[string]int `json:"outcomes,omitempty"`
	CodesWritten    int            `json:"codes_written"`
}

const (
	stateDirName  = ".looter"
	stateFileName = "state.json"
)

// StatePath returns the state file location under dir.
func StatePath(dir string) string {
	return filepath.Join(dir, stateDirName, stateFileName)
}

// LoadState reads the state file under dir. A missing file yields a zero
// State and no error.
func LoadState(dir string) (State, error) {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("runner: read state: %w", err)
	}

	var s State
	if jsonErr := json.Unmarshal(data, &s); jsonErr != nil {
		return State{}, fmt.Errorf("runner: parse state: %w", jsonErr)
	}
	return s, nil
}

// SaveState writes s under dir with write-then-rename so readers never see
// a partial file.
func SaveState(dir string, s State) error {
	stateDir := filepath.Join(dir, stateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("runner: create state dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("runner: marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(stateDir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("runner: create temp state: %w", err)
	}
	if _, writeErr := tmp.Write(data); writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("runner: write state: %w", writeErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("runner: close state: %w", closeErr)
	}
	if renameErr := os.Rename(tmp.Name(), StatePath(dir)); renameErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("runner: finalize state: %w", renameErr)
	}
	return nil
}
