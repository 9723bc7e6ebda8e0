package runner

import (
	"sync"

	"github.com/abdul-hamid-achik/proteusctl/packages/log"
)

// Host is the platform a workflow runs in. It supplies the logger and
// receives the failure signal when a step does not succeed.
type Host interface {
	Logger() log.Logger
	SetFailed(msg string)
}

// CLIHost is the Host used when running from the command line.
type CLIHost struct {
	logger log.Logger

	mu     sync.Mutex
	failed bool
	reason string
}

func NewHost(logger log.Logger) *CLIHost {
	if logger == nil {
		logger = log.Discard()
	}
	return &CLIHost{logger: logger}
}

func (h *CLIHost) Logger() log.Logger {
	return h.logger
}

func (h *CLIHost) SetFailed(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = true
	h.reason = msg
	h.logger.Error(msg)
}

// Failed reports whether SetFailed was called, and with what message.
func (h *CLIHost) Failed() (bool, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failed, h.reason
}
