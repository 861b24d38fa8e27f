// Package notify reports run outcomes to external channels.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/music-brain88/Azure-Credit-Burner/internal/domain"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	RunID   string // Optional run reference
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// Summary builds the end-of-run notification from the run counters
func Summary(s *domain.RunSummary) Notification {
	typ := NotifySuccess
	title := "Analysis run completed"
	if s.Failed > 0 || s.Skipped > 0 {
		typ = NotifyWarning
		title = "Analysis run completed with failures"
	}
	if s.Succeeded == 0 && s.Generated > 0 {
		typ = NotifyError
		title = "Analysis run produced no results"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d/%d tasks succeeded (%d failed, %d skipped) in %s, %d attempts total",
		s.Succeeded, s.Generated, s.Failed, s.Skipped, s.Duration().Round(time.Second), s.Attempts)
	for name, counts := range s.Endpoints {
		fmt.Fprintf(&b, "\n%s: %d ok / %d failed", name, counts.Succeeded, counts.Failed)
	}

	return Notification{
		Title:   title,
		Message: b.String(),
		Type:    typ,
		RunID:   s.RunID,
	}
}
