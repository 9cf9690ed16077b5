package checkin

import "time"

// Trigger says why a run started.
type Trigger string

const (
	TriggerStartup   Trigger = "initial"
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Outcome is the result of one account's check-in within a run.
type Outcome struct {
	Account int       `json:"account"` // 1-based position in the tokens file
	Success bool      `json:"success"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Summary aggregates one run. It is never fed back into later runs.
type Summary struct {
	RunID      string    `json:"run_id"`
	Trigger    Trigger   `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Successes  int       `json:"successes"`
	Outcomes   []Outcome `json:"outcomes"`
}

func (s Summary) Failures() int {
	return len(s.Outcomes) - s.Successes
}

// FailedAccounts lists the 1-based positions of accounts that did not check in.
func (s Summary) FailedAccounts() []int {
	var failed []int
	for _, o := range s.Outcomes {
		if !o.Success {
			failed = append(failed, o.Account)
		}
	}
	return failed
}
