package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/proteusctl/packages/http"
	"github.com/abdul-hamid-achik/proteusctl/packages/log"
	"github.com/abdul-hamid-achik/proteusctl/packages/proteus"
)

const (
	StepLogin  = "login"
	StepDelete = "delete"
	StepLogout = "logout"
)

// ErrUnexpectedStatus marks a step that got a response other than 200 OK.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// StepError reports the step that stopped a run.
type StepError struct {
	Step       string
	StatusCode int
	Err        error
}

func (e *StepError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed: HTTP response code %d", e.Step, e.StatusCode)
	}
	return fmt.Sprintf("%s request failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Config struct {
	Host     string
	Scheme   string
	Username string
	Password string
	// IPAddress identifies the device instance to delete.
	IPAddress  string
	ConfigName string
	// InsecureSkipVerify trusts any certificate the appliance presents.
	InsecureSkipVerify bool
	// BasicAuth also sends the API credentials as preemptive basic auth.
	BasicAuth bool
	Timeout   time.Duration
	Proxy     string
}

type Runner struct {
	config *Config
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Scheme == "" {
		cfg.Scheme = http.SchemeHTTPS
	}
	if cfg.ConfigName == "" {
		cfg.ConfigName = proteus.DefaultConfigName
	}
	return &Runner{config: cfg}
}

type RunResult struct {
	RunID      string
	Host       string
	IPAddress  string
	Steps      []*StepResult
	Passed     bool
	FailedStep string
	Duration   time.Duration
}

type StepResult struct {
	Name       string
	Operation  string
	StatusCode int
	Passed     bool
	Duration   time.Duration
	// Cookie is the session cookie sent with the request, if any.
	Cookie string
	// Body is kept only for failed steps.
	Body  string
	Error error
}

type step struct {
	name          string
	operation     string
	envelope      func(proteus.Session) string
	authenticated bool
	captureCookie bool
}

func (r *Runner) steps() []step {
	return []step{
		{
			name:      StepLogin,
			operation: proteus.OpLogin,
			envelope: func(s proteus.Session) string {
				return proteus.LoginEnvelope(s.Username, s.Password)
			},
			captureCookie: true,
		},
		{
			name:      StepDelete,
			operation: proteus.OpDeleteDeviceInstance,
			envelope: func(proteus.Session) string {
				return proteus.DeleteDeviceInstanceEnvelope(r.config.ConfigName, r.config.IPAddress)
			},
			authenticated: true,
		},
		{
			name:      StepLogout,
			operation: proteus.OpLogout,
			envelope: func(proteus.Session) string {
				return proteus.LogoutEnvelope()
			},
			authenticated: true,
		},
	}
}

// Run executes login, delete and logout in order. It stops at the first
// failing step, signals the host and returns a *StepError alongside the
// partial result.
func (r *Runner) Run(ctx context.Context, host Host) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{
		RunID:     uuid.NewString(),
		Host:      r.config.Host,
		IPAddress: r.config.IPAddress,
	}

	logger := host.Logger().With(log.Fields{
		"run_id": result.RunID,
		"host":   r.config.Host,
	})

	session := proteus.Session{
		Host:     r.config.Host,
		Scheme:   r.config.Scheme,
		Username: r.config.Username,
		Password: r.config.Password,
	}

	for _, st := range r.steps() {
		stepResult, cookie, err := r.runStep(ctx, logger, st, session)
		result.Steps = append(result.Steps, stepResult)

		if err != nil {
			result.FailedStep = st.name
			result.Duration = time.Since(start)
			host.SetFailed("Request failed.")
			return result, err
		}

		if st.captureCookie {
			session = session.WithCookie(cookie)
		}
	}

	result.Passed = true
	result.Duration = time.Since(start)
	logger.Info("device instance deleted", log.Fields{"ip_address": r.config.IPAddress})
	return result, nil
}

func (r *Runner) clientOptions(session proteus.Session) []http.ClientOption {
	opts := []http.ClientOption{
		http.WithInsecureSkipVerify(r.config.InsecureSkipVerify),
	}
	if r.config.Timeout > 0 {
		opts = append(opts, http.WithTimeout(r.config.Timeout))
	}
	if r.config.Proxy != "" {
		opts = append(opts, http.WithProxy(r.config.Proxy))
	}
	if r.config.BasicAuth {
		opts = append(opts, http.WithBasicAuth(session.Username, session.Password))
	}
	return opts
}

// runStep performs one SOAP call on a fresh helper. The returned cookie is
// only set for a successful login.
func (r *Runner) runStep(ctx context.Context, logger log.Logger, st step, session proteus.Session) (*StepResult, string, error) {
	res := &StepResult{
		Name:      st.name,
		Operation: st.operation,
	}
	logger = logger.With(log.Fields{"step": st.name})

	call, err := http.Configure(session.Host, session.Scheme, r.clientOptions(session)...)
	if err != nil {
		logger.Error("cannot configure transport", log.Fields{"error": err.Error()})
		res.Error = err
		return res, "", &StepError{Step: st.name, Err: err}
	}
	defer func() {
		if err := call.Release(); err != nil {
			logger.Warn("releasing connection", log.Fields{"error": err.Error()})
		}
	}()

	call.SetPostRequest(proteus.APIPath, st.envelope(session))
	proteus.ApplySOAPHeaders(call)
	if st.authenticated {
		res.Cookie = session.Cookie
		proteus.ApplyCookieHeaders(call, session.Cookie)
	}

	start := time.Now()
	status, err := call.Execute(ctx)
	res.Duration = time.Since(start)
	if err != nil {
		logger.Error("request failed", log.Fields{"error": err.Error()})
		res.Error = err
		return res, "", &StepError{Step: st.name, Err: err}
	}

	res.StatusCode = status
	logger.Info(fmt.Sprintf("%s request status code: %d", st.name, status), log.Fields{"status": status})

	if status != 200 {
		body, bodyErr := call.ResponseString()
		if bodyErr != nil {
			logger.Warn("reading response body", log.Fields{"error": bodyErr.Error()})
		}
		res.Body = body
		logger.Error(fmt.Sprintf("Request failed. HTTP response code: %d", status), log.Fields{"status": status})
		logger.Info("response body", log.Fields{"body": body})

		stepErr := &StepError{Step: st.name, StatusCode: status, Err: ErrUnexpectedStatus}
		res.Error = stepErr
		return res, "", stepErr
	}

	res.Passed = true

	if st.captureCookie {
		cookie := proteus.ExtractSessionCookie(call.SetCookieHeader())
		if cookie == "" {
			logger.Warn("login response carried no session cookie")
		}
		logger.Debug("session cookie captured", log.Fields{"cookie": cookie})
		return res, cookie, nil
	}

	if _, err := call.ResponseString(); err != nil {
		logger.Warn("reading response body", log.Fields{"error": err.Error()})
	}
	return res, "", nil
}
