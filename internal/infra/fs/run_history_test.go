package fs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"earnos-checkin/internal/features/checkin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryFor(id string, outcomes ...bool) checkin.Summary {
	start := time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC)
	s := checkin.Summary{
		RunID:      id,
		Trigger:    checkin.TriggerScheduled,
		StartedAt:  start,
		FinishedAt: start.Add(time.Duration(len(outcomes)) * 2 * time.Second),
		Total:      len(outcomes),
	}
	for i, ok := range outcomes {
		s.Outcomes = append(s.Outcomes, checkin.Outcome{Account: i + 1, Success: ok})
		if ok {
			s.Successes++
		}
	}
	return s
}

func TestRunHistory_LoadMissingFile(t *testing.T) {
	h := NewRunHistory(t.TempDir(), 10)
	data, err := h.Load()
	require.NoError(t, err)
	assert.Empty(t, data.Entries)
}

func TestRunHistory_AppendsEntries(t *testing.T) {
	h := NewRunHistory(t.TempDir(), 10)
	require.NoError(t, h.Report(context.Background(), summaryFor("r1", true, false, true)))
	require.NoError(t, h.Report(context.Background(), summaryFor("r2", true)))

	data, err := h.Load()
	require.NoError(t, err)
	require.Len(t, data.Entries, 2)
	assert.Equal(t, "r1", data.Entries[0].RunID)
	assert.Equal(t, 2, data.Entries[0].Successes)
	assert.Equal(t, 3, data.Entries[0].Total)
	assert.Equal(t, []int{2}, data.Entries[0].FailedAccounts)
	assert.Equal(t, checkin.TriggerScheduled, data.Entries[1].Trigger)
}

func TestRunHistory_KeepsNewestEntries(t *testing.T) {
	h := NewRunHistory(t.TempDir(), 3)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.Report(context.Background(), summaryFor(fmt.Sprintf("r%d", i), true)))
	}

	data, err := h.Load()
	require.NoError(t, err)
	require.Len(t, data.Entries, 3)
	assert.Equal(t, "r2", data.Entries[0].RunID)
	assert.Equal(t, "r4", data.Entries[2].RunID)
}

func TestRunHistory_ReplacesCorruptFile(t *testing.T) {
	h := NewRunHistory(t.TempDir(), 10)
	require.NoError(t, os.WriteFile(h.Path(), []byte("{not json"), 0644))

	_, err := h.Load()
	require.Error(t, err)

	require.NoError(t, h.Report(context.Background(), summaryFor("r1", true)))
	data, err := h.Load()
	require.NoError(t, err)
	assert.Len(t, data.Entries, 1)
}

func TestRunHistory_NeverStoresTokens(t *testing.T) {
	h := NewRunHistory(t.TempDir(), 10)
	s := summaryFor("r1", false)
	s.Outcomes[0].Reason = "http error (401)"
	require.NoError(t, h.Report(context.Background(), s))

	raw, err := os.ReadFile(h.Path())
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "Bearer"))
	assert.False(t, strings.Contains(string(raw), "reason"))
}
