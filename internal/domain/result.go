package domain

import "time"

// Attempt is a single execution of a task against an endpoint
type Attempt struct {
	Number     int
	StartedAt  time.Time
	FinishedAt time.Time
	Err        error // nil on success
}

// Result is the durable outcome of a successful task execution.
// At most one Result is ever produced per task.
type Result struct {
	TaskID     TaskID
	Endpoint   string
	Timestamp  time.Time
	Messages   []Message // full transcript including the assistant response
	Response   string
	TokensUsed int
	Latency    time.Duration
	Attempts   int
	StoredAt   string // record path, filled in by the persistence sink
}

// EndpointCounts aggregates per-endpoint outcomes for a run
type EndpointCounts struct {
	Succeeded int
	Failed    int
}

// RunSummary aggregates the outcome of one whole run
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Generated  int
	Succeeded  int
	Failed     int
	Skipped    int // chain turns never attempted (prior turn failed, or run canceled)
	Attempts   int
	Endpoints  map[string]EndpointCounts
}

// Duration returns the wall-clock duration of the run
func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
