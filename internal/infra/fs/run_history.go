package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"earnos-checkin/internal/features/checkin"
)

// RunHistoryFile is the journal name inside the data directory.
const RunHistoryFile = "checkin_runs.json"

// RunHistoryEntry is one finished run. Tokens are never written, only account positions.
type RunHistoryEntry struct {
	RunID          string          `json:"run_id"`
	Trigger        checkin.Trigger `json:"trigger"`
	Date           string          `json:"date"` // YYYY-MM-DD, local
	StartedAt      string          `json:"started_at"`
	FinishedAt     string          `json:"finished_at"`
	Successes      int             `json:"successes"`
	Total          int             `json:"total"`
	FailedAccounts []int           `json:"failed_accounts,omitempty"`
}

// RunHistoryData is the file structure of checkin_runs.json.
type RunHistoryData struct {
	Entries []RunHistoryEntry `json:"entries"`
}

// RunHistory is a bounded journal of run summaries. It is write-mostly: nothing reads it
// back to decide what a run does.
type RunHistory struct {
	path  string
	limit int
	mu    sync.Mutex
}

// NewRunHistory keeps the newest limit entries in dataDir/checkin_runs.json; limit <= 0 keeps all.
func NewRunHistory(dataDir string, limit int) *RunHistory {
	if dataDir == "" {
		dataDir = "data_out"
	}
	return &RunHistory{path: filepath.Join(dataDir, RunHistoryFile), limit: limit}
}

func (h *RunHistory) Path() string {
	return h.path
}

// Load returns the journal; a missing or empty file is an empty journal.
func (h *RunHistory) Load() (*RunHistoryData, error) {
	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) || (err == nil && len(data) == 0) {
		return &RunHistoryData{Entries: []RunHistoryEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run history file: %w", err)
	}

	var history RunHistoryData
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse run history JSON: %w", err)
	}
	if history.Entries == nil {
		history.Entries = []RunHistoryEntry{}
	}
	return &history, nil
}

// Report appends the summary to the journal. It satisfies checkin.Reporter.
func (h *RunHistory) Report(_ context.Context, s checkin.Summary) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	history, err := h.Load()
	if err != nil {
		// A corrupt journal is replaced rather than blocking future runs.
		history = &RunHistoryData{Entries: []RunHistoryEntry{}}
	}

	history.Entries = append(history.Entries, RunHistoryEntry{
		RunID:          s.RunID,
		Trigger:        s.Trigger,
		Date:           s.StartedAt.Local().Format("2006-01-02"),
		StartedAt:      s.StartedAt.Format(time.RFC3339),
		FinishedAt:     s.FinishedAt.Format(time.RFC3339),
		Successes:      s.Successes,
		Total:          s.Total,
		FailedAccounts: s.FailedAccounts(),
	})
	if h.limit > 0 && len(history.Entries) > h.limit {
		history.Entries = history.Entries[len(history.Entries)-h.limit:]
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history JSON: %w", err)
	}

	tempFilePath := h.path + ".tmp"
	if err := os.WriteFile(tempFilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary run history file: %w", err)
	}
	if err := os.Rename(tempFilePath, h.path); err != nil {
		_ = os.Remove(tempFilePath)
		return fmt.Errorf("failed to rename temporary file to run history file: %w", err)
	}
	return nil
}
