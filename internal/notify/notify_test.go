package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

func TestSlackNotifier_Send(t *testing.T) {
	var received SlackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("payload is not valid JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	err := notifier.Send(Notification{
		Title:   "Analysis run completed",
		Message: "40/42 tasks succeeded",
		Type:    NotifySuccess,
		RunID:   "run-1",
	})
	if err != nil {
		t.Errorf("Send failed: %v", err)
	}

	if received.Text != "Analysis run completed" {
		t.Errorf("Text = %q", received.Text)
	}
	if len(received.Attachments) != 1 || received.Attachments[0].Title != "run run-1" {
		t.Errorf("Attachments = %+v", received.Attachments)
	}
}

func TestSlackNotifier_DisabledWithoutURL(t *testing.T) {
	notifier := NewSlackNotifier("")
	if err := notifier.Send(Notification{Title: "x"}); err != nil {
		t.Errorf("Send with empty webhook = %v, want nil", err)
	}
}

func TestSlackNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	notifier := NewSlackNotifier(server.URL)
	if err := notifier.Send(Notification{Title: "x"}); err == nil {
		t.Error("Send() = nil on HTTP 403")
	}
}

func TestNotificationTypeColors(t *testing.T) {
	tests := []struct {
		typ  NotificationType
		want string
	}{
		{NotifySuccess, "good"},
		{NotifyWarning, "warning"},
		{NotifyError, "danger"},
		{NotifyInfo, "#439FE0"},
	}

	for _, tt := range tests {
		got := SlackColor(tt.typ)
		if got != tt.want {
			t.Errorf("SlackColor(%v) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestMultiNotifier(t *testing.T) {
	var called []string

	mock1 := &mockNotifier{name: "mock1", calls: &called}
	mock2 := &mockNotifier{name: "mock2", calls: &called}

	multi := NewMultiNotifier(mock1, mock2)
	multi.Send(Notification{Title: "Test"})

	if len(called) != 2 {
		t.Errorf("Expected 2 calls, got %d", len(called))
	}
}

func TestSummary(t *testing.T) {
	now := time.Now()
	s := &domain.RunSummary{
		RunID:      "run-1",
		StartedAt:  now,
		FinishedAt: now.Add(90 * time.Second),
		Generated:  42,
		Succeeded:  40,
		Failed:     1,
		Skipped:    1,
		Attempts:   45,
		Endpoints: map[string]domain.EndpointCounts{
			"eastus": {Succeeded: 40, Failed: 1},
		},
	}

	n := Summary(s)
	if n.Type != NotifyWarning {
		t.Errorf("Type = %v, want warning when tasks failed", n.Type)
	}
	if n.RunID != "run-1" {
		t.Errorf("RunID = %q", n.RunID)
	}
	for _, want := range []string{"40/42", "1 failed", "1 skipped", "eastus"} {
		if !strings.Contains(n.Message, want) {
			t.Errorf("message %q missing %q", n.Message, want)
		}
	}

	// Clean run is a success
	clean := &domain.RunSummary{Generated: 5, Succeeded: 5, StartedAt: now, FinishedAt: now}
	if got := Summary(clean); got.Type != NotifySuccess {
		t.Errorf("clean run Type = %v", got.Type)
	}

	// Total loss is an error
	lost := &domain.RunSummary{Generated: 5, Failed: 5, StartedAt: now, FinishedAt: now}
	if got := Summary(lost); got.Type != NotifyError {
		t.Errorf("total-loss run Type = %v", got.Type)
	}
}

type mockNotifier struct {
	name  string
	calls *[]string
}

func (m *mockNotifier) Send(n Notification) error {
	*m.calls = append(*m.calls, m.name)
	return nil
}
