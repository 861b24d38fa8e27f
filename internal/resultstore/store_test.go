package resultstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "burner.db"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testResult(category string, turn int, endpoint string, tokens int) *domain.Result {
	return &domain.Result{
		TaskID:     domain.TaskID{Repo: "rust-lang/rust", Category: category, Turn: turn},
		Endpoint:   endpoint,
		Timestamp:  time.Now(),
		TokensUsed: tokens,
		Latency:    2 * time.Second,
		Attempts:   1,
		StoredAt:   "/out/rust-lang_rust/record.json",
	}
}

func TestRunLifecycle(t *testing.T) {
	s := testStore(t)

	started := time.Now()
	if err := s.CreateRun("run-1", started, 42); err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}

	summary := &domain.RunSummary{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Generated:  42,
		Succeeded:  40,
		Failed:     1,
		Skipped:    1,
		Attempts:   45,
	}
	if err := s.FinishRun(summary); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}

	runs, err := s.ListRuns(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("ListRuns() = %d runs", len(runs))
	}
	r := runs[0]
	if r.ID != "run-1" || r.Succeeded != 40 || r.Failed != 1 || r.Skipped != 1 || r.Attempts != 45 {
		t.Errorf("run = %+v", r)
	}
	if !r.FinishedAt.Valid {
		t.Error("FinishedAt not recorded")
	}
}

func TestFinishRun_UnknownRun(t *testing.T) {
	s := testStore(t)
	err := s.FinishRun(&domain.RunSummary{RunID: "ghost"})
	if err == nil {
		t.Error("FinishRun(ghost) = nil, want error")
	}
}

func TestListRuns_OrderAndLimit(t *testing.T) {
	s := testStore(t)

	base := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.CreateRun(id, base.Add(time.Duration(i)*time.Hour), 1); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Errorf("ListRuns(2) = %v", []string{runs[0].ID, runs[1].ID})
	}
}

func TestResults(t *testing.T) {
	s := testStore(t)
	if err := s.CreateRun("run-1", time.Now(), 4); err != nil {
		t.Fatal(err)
	}

	for _, r := range []*domain.Result{
		testResult("security", 2, "westus", 200),
		testResult("security", 1, "eastus", 100),
		testResult("testing", 1, "eastus", 300),
	} {
		if err := s.InsertResult("run-1", r); err != nil {
			t.Fatalf("InsertResult() error: %v", err)
		}
	}

	results, err := s.ListResults(ListOptions{RunID: "run-1", Category: "security"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("ListResults(security) = %d rows", len(results))
	}
	// Chain order: turn 1 before turn 2
	if results[0].Turn != 1 || results[1].Turn != 2 {
		t.Errorf("order = T%d, T%d", results[0].Turn, results[1].Turn)
	}
	if results[0].FilePath == "" {
		t.Error("file_path not indexed")
	}

	totals, err := s.TokensByEndpoint("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if totals["eastus"] != 400 || totals["westus"] != 200 {
		t.Errorf("TokensByEndpoint = %v", totals)
	}
}

func TestIndexSink(t *testing.T) {
	s := testStore(t)
	if err := s.CreateRun("run-1", time.Now(), 1); err != nil {
		t.Fatal(err)
	}

	is := &IndexSink{Store: s, RunID: "run-1"}
	if err := is.Write(testResult("security", 1, "eastus", 50)); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	results, err := s.ListResults(ListOptions{RunID: "run-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("indexed %d results", len(results))
	}
}
