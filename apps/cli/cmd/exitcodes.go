package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/proteusctl/packages/core/config"
	"github.com/abdul-hamid-achik/proteusctl/packages/core/runner"
	"github.com/abdul-hamid-achik/proteusctl/packages/http"
	"github.com/abdul-hamid-achik/proteusctl/packages/notify"
)

// Exit codes for proteusctl CLI
const (
	// ExitSuccess indicates the device instance was deleted
	ExitSuccess = 0

	// ExitWorkflowFailure indicates a SOAP call answered something other than 200
	ExitWorkflowFailure = 1

	// ExitConfigError indicates a missing or invalid setting
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries an explicit exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	return &exitError{code: ExitUsageError, err: err}
}

func configError(err error) error {
	return &exitError{code: ExitConfigError, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	switch {
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, notify.ErrUnknownPolicy),
		errors.Is(err, http.ErrEmptyHost),
		errors.Is(err, http.ErrInvalidHost),
		errors.Is(err, http.ErrUnsupportedScheme):
		return ExitConfigError
	case errors.Is(err, runner.ErrUnexpectedStatus):
		return ExitWorkflowFailure
	}

	var stepErr *runner.StepError
	if errors.As(err, &stepErr) {
		return ExitNetworkError
	}

	return ExitWorkflowFailure
}
