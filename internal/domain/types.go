package domain

import "time"

type ScheduleType string

const (
	ScheduleOnce   ScheduleType = "once"
	ScheduleRepeat ScheduleType = "repeat"
)

// MaxExecutionHistory bounds the per-task execution log; oldest entries are
// dropped first.
const MaxExecutionHistory = 100

// Schedule is a tagged variant: Datetime is set iff Type is "once", Cron is
// set iff Type is "repeat". Well-formedness is enforced once, at task
// creation.
type Schedule struct {
	Type     ScheduleType `json:"type"`
	Datetime string       `json:"datetime,omitempty"`
	Cron     string       `json:"cron,omitempty"`
}

type Task struct {
	ID             string   `json:"id"`
	Message        string   `json:"message,omitempty"`
	Title          string   `json:"title,omitempty"`
	AIPrompt       string   `json:"aiPrompt,omitempty"`
	AIModel        string   `json:"aiModel,omitempty"`
	AISystemPrompt string   `json:"aiSystemPrompt,omitempty"`
	Schedule       Schedule `json:"schedule"`

	// Pushover holds provider-specific overrides merged verbatim into the
	// delivery call (priority, sound, device, url, ...).
	Pushover map[string]string `json:"pushover,omitempty"`

	CreatedAt        time.Time      `json:"createdAt"`
	LastRun          *time.Time     `json:"lastRun,omitempty"`
	ExecutionHistory []ExecutionLog `json:"executionHistory,omitempty"`
}

type ExecStatus string

const (
	StatusSuccess ExecStatus = "success"
	StatusFailed  ExecStatus = "failed"
)

type ExecutionLog struct {
	ExecutedAt         time.Time  `json:"executedAt"`
	Status             ExecStatus `json:"status"`
	Response           string     `json:"response,omitempty"`
	Error              string     `json:"error,omitempty"`
	AIGeneratedMessage string     `json:"aiGeneratedMessage,omitempty"`
}

// AppendLog appends one execution record and trims the history to the most
// recent MaxExecutionHistory entries.
func (t *Task) AppendLog(e ExecutionLog) {
	t.ExecutionHistory = append(t.ExecutionHistory, e)
	if n := len(t.ExecutionHistory); n > MaxExecutionHistory {
		t.ExecutionHistory = t.ExecutionHistory[n-MaxExecutionHistory:]
	}
}
