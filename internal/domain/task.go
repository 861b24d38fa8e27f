package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

var taskIDRegex = regexp.MustCompile(`^([^/#\s]+/[^/#\s]+)#([a-z][a-z0-9-]*)/T(\d+)$`)

// TaskID uniquely identifies a task as repo#category/T{turn}
type TaskID struct {
	Repo     string // "owner/name"
	Category string
	Turn     int
}

// ParseTaskID parses a string like "rust-lang/rust#security/T03" into a TaskID
func ParseTaskID(s string) (TaskID, error) {
	matches := taskIDRegex.FindStringSubmatch(s)
	if matches == nil {
		return TaskID{}, fmt.Errorf("invalid task ID format: %q (expected owner/name#category/T##)", s)
	}
	turn, _ := strconv.Atoi(matches[3]) // regex guarantees digits
	return TaskID{Repo: matches[1], Category: matches[2], Turn: turn}, nil
}

// String returns the canonical string representation
func (t TaskID) String() string {
	return fmt.Sprintf("%s#%s/T%02d", t.Repo, t.Category, t.Turn)
}

// ChainKey identifies the sequential conversation this task belongs to.
// Turns within a chain are causally ordered; chains are independent.
func (t TaskID) ChainKey() string {
	return t.Repo + "#" + t.Category
}

// Repository identifies a git repository to analyze
type Repository struct {
	Owner    string
	Name     string
	MaxFiles int
}

// FullName returns "owner/name"
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Validate checks the repository entry is well-formed
func (r Repository) Validate() error {
	if r.Owner == "" || r.Name == "" {
		return NewConfigError("repository entry requires owner and name, got %q/%q", r.Owner, r.Name)
	}
	if r.MaxFiles <= 0 {
		return NewConfigError("repository %s: max_files must be positive, got %d", r.FullName(), r.MaxFiles)
	}
	return nil
}

// Task is one analysis prompt for one repository/category/turn.
// Tasks are immutable values created once by the generator and consumed
// exactly once by the dispatcher. Endpoint assignment happens at admission.
type Task struct {
	ID           TaskID
	Repo         Repository
	SystemPrompt string
	Question     string // the user turn text for this task
	FetchErr     error  // set when the repository's content fetch failed; such tasks fail without an attempt
}
