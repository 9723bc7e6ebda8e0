// Package notify mirrors the outcome of a delete-device run to chat webhooks.
package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/proteusctl/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when the run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when the device was deleted
	NotifySuccess NotifyOn = "success"
)

// ErrUnknownPolicy is returned by ParseNotifyOn for unsupported values.
var ErrUnknownPolicy = errors.New("unknown notify policy")

// ParseNotifyOn validates a policy name. An empty value means failure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch NotifyOn(s) {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess:
		return NotifyOn(s), nil
	}
	return "", fmt.Errorf("%w: %q (use always, failure or success)", ErrUnknownPolicy, s)
}

// RunSummary represents the outcome of a run for notifications
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Host       string        `json:"host"`
	IPAddress  string        `json:"ip_address"`
	Passed     bool          `json:"passed"`
	FailedStep string        `json:"failed_step,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// NewRunSummary condenses a run result. The status code and error are the
// ones of the failing step, if any.
func NewRunSummary(result *runner.RunResult) *RunSummary {
	summary := &RunSummary{
		RunID:      result.RunID,
		Host:       result.Host,
		IPAddress:  result.IPAddress,
		Passed:     result.Passed,
		FailedStep: result.FailedStep,
		Duration:   result.Duration,
	}
	for _, s := range result.Steps {
		if s.Name != result.FailedStep {
			continue
		}
		summary.StatusCode = s.StatusCode
		if s.Error != nil {
			summary.Error = s.Error.Error()
		}
	}
	return summary
}

func (s *RunSummary) title() string {
	if s.Passed {
		return fmt.Sprintf("Device %s deleted", s.IPAddress)
	}
	return fmt.Sprintf("Deleting device %s failed at %s", s.IPAddress, s.FailedStep)
}

func (s *RunSummary) status() string {
	if s.StatusCode == 0 {
		return "no response"
	}
	return fmt.Sprintf("%d", s.StatusCode)
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about a run
	Notify(summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager fans a summary out to several notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
	}
}

// ShouldNotify reports whether the policy selects this run.
func (m *Manager) ShouldNotify(summary *RunSummary) bool {
	switch m.notifyOn {
	case NotifyAlways:
		return true
	case NotifySuccess:
		return summary.Passed
	default:
		return !summary.Passed
	}
}

// Notify sends notifications based on the configured policy. Every notifier
// is tried; failures are joined.
func (m *Manager) Notify(summary *RunSummary) error {
	if !m.ShouldNotify(summary) {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
