package domain

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusAdmitted  TaskStatus = "admitted"
	StatusExecuting TaskStatus = "executing"
	StatusRetrying  TaskStatus = "retrying"
	StatusSucceeded TaskStatus = "succeeded"
	StatusFailed    TaskStatus = "failed"
	StatusSkipped   TaskStatus = "skipped"
)

// Terminal returns true if the status is a terminal state
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Message is one turn of a chat conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Endpoint is one independently-credentialed Azure OpenAI regional target.
// Immutable after pool construction; tasks reference it by name only.
type Endpoint struct {
	Name    string
	Key     string
	BaseURL string
}
