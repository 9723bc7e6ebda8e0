package notify

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/proteusctl/packages/core/runner"
)

type webhook struct {
	mu       sync.Mutex
	payloads []string
	status   int
}

func newWebhook(t *testing.T, status int) (*webhook, *httptest.Server) {
	t.Helper()
	w := &webhook{status: status}
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.mu.Lock()
		w.payloads = append(w.payloads, string(body))
		w.mu.Unlock()
		rw.WriteHeader(w.status)
	}))
	t.Cleanup(server.Close)
	return w, server
}

func (w *webhook) received() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.payloads...)
}

func failedSummary() *RunSummary {
	return &RunSummary{
		RunID:      "run-1",
		Host:       "proteus.lab",
		IPAddress:  "10.20.30.40",
		FailedStep: runner.StepDelete,
		StatusCode: 500,
		Error:      "delete request failed: HTTP response code 500",
		Duration:   42 * time.Millisecond,
	}
}

func TestParseNotifyOn(t *testing.T) {
	for _, s := range []string{"always", "failure", "success"} {
		on, err := ParseNotifyOn(s)
		require.NoError(t, err)
		assert.Equal(t, NotifyOn(s), on)
	}

	on, err := ParseNotifyOn("")
	require.NoError(t, err)
	assert.Equal(t, NotifyFailure, on)

	_, err = ParseNotifyOn("recovery")
	assert.True(t, errors.Is(err, ErrUnknownPolicy))
}

func TestNewRunSummary(t *testing.T) {
	result := &runner.RunResult{
		RunID:      "run-1",
		Host:       "proteus.lab",
		IPAddress:  "10.20.30.40",
		FailedStep: runner.StepDelete,
		Steps: []*runner.StepResult{
			{Name: runner.StepLogin, StatusCode: 200, Passed: true},
			{Name: runner.StepDelete, StatusCode: 500, Error: &runner.StepError{Step: runner.StepDelete, StatusCode: 500, Err: runner.ErrUnexpectedStatus}},
		},
	}

	summary := NewRunSummary(result)
	assert.False(t, summary.Passed)
	assert.Equal(t, runner.StepDelete, summary.FailedStep)
	assert.Equal(t, 500, summary.StatusCode)
	assert.Equal(t, "delete request failed: HTTP response code 500", summary.Error)
	assert.Equal(t, "500", summary.status())

	passed := NewRunSummary(&runner.RunResult{Passed: true, Steps: []*runner.StepResult{{Name: runner.StepLogin, StatusCode: 200}}})
	assert.True(t, passed.Passed)
	assert.Zero(t, passed.StatusCode)
	assert.Equal(t, "no response", passed.status())
}

type recorder struct {
	name  string
	calls int
	err   error
}

func (r *recorder) Notify(*RunSummary) error {
	r.calls++
	return r.err
}

func (r *recorder) Name() string { return r.name }

func TestManager_Policy(t *testing.T) {
	tests := []struct {
		on     NotifyOn
		passed bool
		want   bool
	}{
		{NotifyAlways, true, true},
		{NotifyAlways, false, true},
		{NotifyFailure, true, false},
		{NotifyFailure, false, true},
		{NotifySuccess, true, true},
		{NotifySuccess, false, false},
	}

	for _, tt := range tests {
		rec := &recorder{name: "rec"}
		m := NewManager(tt.on, rec)
		require.NoError(t, m.Notify(&RunSummary{Passed: tt.passed}))
		assert.Equal(t, tt.want, rec.calls == 1, "%s passed=%v", tt.on, tt.passed)
	}
}

func TestManager_TriesEveryNotifier(t *testing.T) {
	broken := &recorder{name: "broken", err: errors.New("boom")}
	ok := &recorder{name: "ok"}

	m := NewManager(NotifyAlways, broken, ok)

	err := m.Notify(failedSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: boom")
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, ok.calls)
}

func TestSlackNotifier(t *testing.T) {
	hook, server := newWebhook(t, http.StatusOK)

	n := NewSlackNotifier(server.URL, WithSlackChannel("#ipam"), WithSlackUsername("ipam-bot"))
	assert.Equal(t, "slack", n.Name())
	require.NoError(t, n.Notify(failedSummary()))

	payloads := hook.received()
	require.Len(t, payloads, 1)
	p := payloads[0]
	assert.Equal(t, "#ipam", gjson.Get(p, "channel").String())
	assert.Equal(t, "ipam-bot", gjson.Get(p, "username").String())
	assert.Equal(t, "danger", gjson.Get(p, "attachments.0.color").String())
	assert.Contains(t, gjson.Get(p, "attachments.0.title").String(), "failed at delete")
	assert.Equal(t, "proteus.lab", gjson.Get(p, `attachments.0.fields.#(title=="Host").value`).String())
	assert.Equal(t, "10.20.30.40", gjson.Get(p, `attachments.0.fields.#(title=="IP Address").value`).String())
	assert.Equal(t, "500", gjson.Get(p, `attachments.0.fields.#(title=="Status").value`).String())
	assert.Contains(t, gjson.Get(p, "attachments.0.text").String(), "HTTP response code 500")
	assert.Equal(t, "proteusctl run run-1", gjson.Get(p, "attachments.0.footer").String())
}

func TestSlackNotifier_Success(t *testing.T) {
	hook, server := newWebhook(t, http.StatusOK)

	require.NoError(t, NewSlackNotifier(server.URL).Notify(&RunSummary{Passed: true, IPAddress: "10.0.0.1"}))

	p := hook.received()[0]
	assert.Equal(t, "good", gjson.Get(p, "attachments.0.color").String())
	assert.Contains(t, gjson.Get(p, "attachments.0.title").String(), "Device 10.0.0.1 deleted")
	assert.False(t, gjson.Get(p, `attachments.0.fields.#(title=="Failed Step")`).Exists())
}

func TestSlackNotifier_ErrorStatus(t *testing.T) {
	_, server := newWebhook(t, http.StatusForbidden)

	err := NewSlackNotifier(server.URL).Notify(failedSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestTeamsNotifier(t *testing.T) {
	hook, server := newWebhook(t, http.StatusAccepted)

	n := NewTeamsNotifier(server.URL)
	assert.Equal(t, "teams", n.Name())
	require.NoError(t, n.Notify(failedSummary()))

	p := hook.received()[0]
	assert.Equal(t, "message", gjson.Get(p, "type").String())
	card := gjson.Get(p, "attachments.0.content")
	assert.Equal(t, "AdaptiveCard", card.Get("type").String())
	assert.Equal(t, "attention", card.Get("body.0.color").String())
	assert.Equal(t, "delete", card.Get(`body.1.facts.#(title=="Failed Step").value`).String())
	assert.Equal(t, "500", card.Get(`body.1.facts.#(title=="Status").value`).String())
	assert.Contains(t, card.Get("body.2.text").String(), "HTTP response code 500")
}

func TestTeamsNotifier_ErrorStatus(t *testing.T) {
	_, server := newWebhook(t, http.StatusBadRequest)

	err := NewTeamsNotifier(server.URL).Notify(failedSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
