// Package sink persists analysis results. A task only counts as
// succeeded once its sink write has returned.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

// Sink persists one result durably. Write must not return until the
// record is safe; a non-nil error fails the task.
type Sink interface {
	Write(result *domain.Result) error
}

// record is the on-disk JSON shape of one analysis result
type record struct {
	Repo       string           `json:"repo"`
	Category   string           `json:"category"`
	Turn       int              `json:"turn"`
	Timestamp  string           `json:"timestamp"`
	Endpoint   string           `json:"endpoint"`
	Messages   []domain.Message `json:"messages"`
	TokensUsed int              `json:"tokens_used"`
	LatencyMS  int64            `json:"latency_ms"`
	Attempts   int              `json:"attempts"`
}

// FileSink writes one pretty-printed JSON file per result under
// {dir}/{owner}_{name}/.
type FileSink struct {
	dir string
}

// NewFileSink creates a sink rooted at dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Write stores the result as JSON via a temp file and rename, then fills
// in result.StoredAt with the record path.
func (s *FileSink) Write(result *domain.Result) error {
	repoDir := filepath.Join(s.dir, strings.ReplaceAll(result.TaskID.Repo, "/", "_"))
	if err := os.MkdirAll(repoDir, 0755); err != nil {
		return &domain.PersistenceError{Err: fmt.Errorf("create %s: %w", repoDir, err)}
	}

	data, err := json.MarshalIndent(record{
		Repo:       result.TaskID.Repo,
		Category:   result.TaskID.Category,
		Turn:       result.TaskID.Turn,
		Timestamp:  result.Timestamp.Format(time.RFC3339),
		Endpoint:   result.Endpoint,
		Messages:   result.Messages,
		TokensUsed: result.TokensUsed,
		LatencyMS:  result.Latency.Milliseconds(),
		Attempts:   result.Attempts,
	}, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Err: fmt.Errorf("marshal %s: %w", result.TaskID, err)}
	}

	path := s.recordPath(repoDir, result)

	tmp, err := os.CreateTemp(repoDir, ".record-*.tmp")
	if err != nil {
		return &domain.PersistenceError{Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &domain.PersistenceError{Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &domain.PersistenceError{Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return &domain.PersistenceError{Err: err}
	}

	result.StoredAt = path
	return nil
}

// recordPath picks {category}_{endpoint}_turn{NN}_{timestamp}.json,
// suffixing a counter when two results land in the same second
func (s *FileSink) recordPath(repoDir string, result *domain.Result) string {
	base := fmt.Sprintf("%s_%s_turn%02d_%s",
		result.TaskID.Category, result.Endpoint, result.TaskID.Turn,
		result.Timestamp.Format("20060102_150405"))

	path := filepath.Join(repoDir, base+".json")
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(repoDir, fmt.Sprintf("%s_%d.json", base, i))
	}
}

// MultiSink fans a result out to several sinks. The first sink is
// authoritative: its error fails the write. Later sinks are best-effort
// index writers whose errors are returned via the optional observer.
type MultiSink struct {
	Primary   Sink
	Secondary []Sink
	OnError   func(s Sink, err error)
}

// Write writes to the primary sink, then the secondaries
func (m *MultiSink) Write(result *domain.Result) error {
	if err := m.Primary.Write(result); err != nil {
		return err
	}
	for _, s := range m.Secondary {
		if err := s.Write(result); err != nil && m.OnError != nil {
			m.OnError(s, err)
		}
	}
	return nil
}

// MemorySink collects results in memory for tests and plan mode.
// Safe for concurrent writers.
type MemorySink struct {
	mu      sync.Mutex
	results []*domain.Result
	Err     error // returned from every Write when set
}

// Write records the result, or fails when Err is set
func (m *MemorySink) Write(result *domain.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return &domain.PersistenceError{Err: m.Err}
	}
	result.StoredAt = "memory://" + result.TaskID.String()
	m.results = append(m.results, result)
	return nil
}

// Results returns a snapshot of everything written so far
func (m *MemorySink) Results() []*domain.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Result, len(m.results))
	copy(out, m.results)
	return out
}
