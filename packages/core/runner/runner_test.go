package runner

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	phttp "github.com/abdul-hamid-achik/proteusctl/packages/http"
	"github.com/abdul-hamid-achik/proteusctl/packages/log"
	"github.com/abdul-hamid-achik/proteusctl/packages/mock"
	"github.com/abdul-hamid-achik/proteusctl/packages/proteus"
)

func testHost() (*CLIHost, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewHost(log.New(log.WithOutput(&buf), log.WithLevel("debug"))), &buf
}

func testConfig(server *httptest.Server) *Config {
	return &Config{
		Host:      strings.TrimPrefix(server.URL, "http://"),
		Scheme:    "http",
		Username:  "apiuser",
		Password:  "secret",
		IPAddress: "10.20.30.40",
	}
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config", func(t *testing.T) {
		r := NewRunner(nil)
		assert.NotNil(t, r)
		assert.Equal(t, "https", r.config.Scheme)
		assert.Equal(t, proteus.DefaultConfigName, r.config.ConfigName)
	})

	t.Run("with custom config", func(t *testing.T) {
		r := NewRunner(&Config{Scheme: "http", ConfigName: "Lab"})
		assert.Equal(t, "http", r.config.Scheme)
		assert.Equal(t, "Lab", r.config.ConfigName)
	})
}

func TestRunner_Run_Success(t *testing.T) {
	m := mock.NewServer()
	server := httptest.NewServer(m)
	defer server.Close()

	host, _ := testHost()
	result, err := NewRunner(testConfig(server)).Run(context.Background(), host)

	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Empty(t, result.FailedStep)
	assert.NotEmpty(t, result.RunID)
	require.Len(t, result.Steps, 3)
	for _, s := range result.Steps {
		assert.True(t, s.Passed, s.Name)
		assert.Equal(t, 200, s.StatusCode, s.Name)
	}

	failed, _ := host.Failed()
	assert.False(t, failed)

	exchanges := m.Exchanges()
	require.Len(t, exchanges, 3)
	assert.Equal(t, []string{proteus.OpLogin, proteus.OpDeleteDeviceInstance, proteus.OpLogout}, m.Operations())

	cookie := proteus.ExtractSessionCookie(exchanges[0].SetCookie)
	require.NotEmpty(t, cookie)
	assert.Empty(t, exchanges[0].Cookie)
	for _, e := range exchanges[1:] {
		assert.Equal(t, cookie, e.Cookie)
		assert.Equal(t, "$Version=1", e.Cookie2)
	}
	assert.Equal(t, cookie, result.Steps[1].Cookie)
	assert.Equal(t, cookie, result.Steps[2].Cookie)
}

func TestRunner_Run_Headers(t *testing.T) {
	m := mock.NewServer()
	server := httptest.NewServer(m)
	defer server.Close()

	host, _ := testHost()
	_, err := NewRunner(testConfig(server)).Run(context.Background(), host)
	require.NoError(t, err)

	for _, e := range m.Exchanges() {
		assert.Equal(t, http.MethodPost, e.Method)
		assert.Equal(t, proteus.APIPath, e.Path)
		assert.Equal(t, "gzip, deflate", e.Header.Get("Accept-Encoding"))
		assert.Equal(t, "text/xml;charset=UTF-8", e.Header.Get("Content-Type"))
		assert.Contains(t, e.Header, "Soapaction")
		assert.Equal(t, "close", e.Header.Get("Connection"))
	}

	body := m.Exchanges()[1].Body
	assert.Contains(t, body, "<identifier>10.20.30.40</identifier>")
	assert.Contains(t, body, "<configName>PGE Corporate</configName>")
	assert.Contains(t, m.Exchanges()[0].Body, "<username>apiuser</username>")
}

func TestRunner_Run_LoginFails(t *testing.T) {
	m := mock.NewServer(mock.WithStatus(proteus.OpLogin, http.StatusUnauthorized))
	server := httptest.NewServer(m)
	defer server.Close()

	host, logs := testHost()
	result, err := NewRunner(testConfig(server)).Run(context.Background(), host)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepLogin, stepErr.Step)
	assert.Equal(t, 401, stepErr.StatusCode)

	assert.False(t, result.Passed)
	assert.Equal(t, StepLogin, result.FailedStep)
	require.Len(t, result.Steps, 1)
	assert.Contains(t, result.Steps[0].Body, "forced failure")

	assert.Equal(t, []string{proteus.OpLogin}, m.Operations())

	failed, reason := host.Failed()
	assert.True(t, failed)
	assert.Equal(t, "Request failed.", reason)
	assert.Contains(t, logs.String(), "HTTP response code: 401")
	assert.Contains(t, logs.String(), "forced failure")
}

func TestRunner_Run_DeleteFails(t *testing.T) {
	m := mock.NewServer(mock.WithStatus(proteus.OpDeleteDeviceInstance, http.StatusInternalServerError))
	server := httptest.NewServer(m)
	defer server.Close()

	host, logs := testHost()
	result, err := NewRunner(testConfig(server)).Run(context.Background(), host)

	require.Error(t, err)
	assert.Equal(t, StepDelete, result.FailedStep)
	require.Len(t, result.Steps, 2)

	exchanges := m.Exchanges()
	require.Len(t, exchanges, 2)
	assert.Equal(t, []string{proteus.OpLogin, proteus.OpDeleteDeviceInstance}, m.Operations())
	assert.Equal(t, proteus.ExtractSessionCookie(exchanges[0].SetCookie), exchanges[1].Cookie)

	failed, _ := host.Failed()
	assert.True(t, failed)
	assert.Contains(t, logs.String(), "HTTP response code: 500")
}

func TestRunner_Run_LogoutFails(t *testing.T) {
	m := mock.NewServer(mock.WithStatus(proteus.OpLogout, http.StatusServiceUnavailable))
	server := httptest.NewServer(m)
	defer server.Close()

	host, _ := testHost()
	result, err := NewRunner(testConfig(server)).Run(context.Background(), host)

	require.Error(t, err)
	assert.Equal(t, StepLogout, result.FailedStep)
	assert.Len(t, m.Exchanges(), 3)
	assert.True(t, result.Steps[1].Passed)
	assert.False(t, result.Steps[2].Passed)
}

func TestRunner_Run_TransportError(t *testing.T) {
	server := httptest.NewServer(mock.NewServer())
	cfg := testConfig(server)
	server.Close()

	host, _ := testHost()
	result, err := NewRunner(cfg).Run(context.Background(), host)

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnexpectedStatus))

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepLogin, stepErr.Step)
	assert.Zero(t, stepErr.StatusCode)

	assert.Equal(t, StepLogin, result.FailedStep)
	failed, _ := host.Failed()
	assert.True(t, failed)
}

func TestRunner_Run_BadScheme(t *testing.T) {
	host, _ := testHost()
	result, err := NewRunner(&Config{Host: "proteus", Scheme: "ftp"}).Run(context.Background(), host)

	require.Error(t, err)
	assert.True(t, errors.Is(err, phttp.ErrUnsupportedScheme))
	require.Len(t, result.Steps, 1)
	assert.Zero(t, result.Steps[0].StatusCode)
}

func TestRunner_Run_BadHost(t *testing.T) {
	m := mock.NewServer()
	server := httptest.NewServer(m)
	defer server.Close()

	for _, bad := range []string{
		server.URL,
		strings.TrimPrefix(server.URL, "http://") + proteus.APIPath,
		"127.0.0.1:abc",
	} {
		t.Run(bad, func(t *testing.T) {
			cfg := testConfig(server)
			cfg.Host = bad

			host, _ := testHost()
			result, err := NewRunner(cfg).Run(context.Background(), host)

			require.Error(t, err)
			assert.True(t, errors.Is(err, phttp.ErrInvalidHost))
			require.Len(t, result.Steps, 1)
			assert.Zero(t, result.Steps[0].StatusCode)
		})
	}
	assert.Empty(t, m.Exchanges())
}

// connCounter tracks server-side connection states.
type connCounter struct {
	mu     sync.Mutex
	opened int
	closed int
}

func (c *connCounter) track(_ net.Conn, state http.ConnState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch state {
	case http.StateNew:
		c.opened++
	case http.StateClosed, http.StateHijacked:
		c.closed++
	}
}

func (c *connCounter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened, c.closed
}

func TestRunner_Run_ReleasesConnections(t *testing.T) {
	tests := []struct {
		name  string
		opts  []mock.Option
		steps int
	}{
		{name: "success", steps: 3},
		{name: "login fails", opts: []mock.Option{mock.WithStatus(proteus.OpLogin, http.StatusUnauthorized)}, steps: 1},
		{name: "delete fails", opts: []mock.Option{mock.WithStatus(proteus.OpDeleteDeviceInstance, http.StatusInternalServerError)}, steps: 2},
		{name: "logout fails", opts: []mock.Option{mock.WithStatus(proteus.OpLogout, http.StatusServiceUnavailable)}, steps: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conns := &connCounter{}
			server := httptest.NewUnstartedServer(mock.NewServer(tt.opts...))
			server.Config.ConnState = conns.track
			server.Start()
			defer server.Close()

			host, _ := testHost()
			result, _ := NewRunner(testConfig(server)).Run(context.Background(), host)
			require.Len(t, result.Steps, tt.steps)

			require.Eventually(t, func() bool {
				_, closed := conns.counts()
				return closed == tt.steps
			}, 2*time.Second, 10*time.Millisecond)

			opened, closed := conns.counts()
			assert.Equal(t, tt.steps, opened, "one connection per step")
			assert.Equal(t, opened, closed)
		})
	}
}

func TestRunner_Run_InsecureTLS(t *testing.T) {
	m := mock.NewServer()
	server := httptest.NewTLSServer(m)
	defer server.Close()

	cfg := testConfig(server)
	cfg.Host = strings.TrimPrefix(server.URL, "https://")
	cfg.Scheme = "https"
	cfg.InsecureSkipVerify = true

	host, _ := testHost()
	result, err := NewRunner(cfg).Run(context.Background(), host)

	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Len(t, m.Exchanges(), 3)
}

func TestRunner_Run_BasicAuth(t *testing.T) {
	m := mock.NewServer()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "apiuser", user)
		assert.Equal(t, "secret", pass)
		m.ServeHTTP(w, r)
	}))
	defer server.Close()

	cfg := testConfig(server)
	cfg.BasicAuth = true

	host, _ := testHost()
	_, err := NewRunner(cfg).Run(context.Background(), host)
	require.NoError(t, err)
}

func TestStepError(t *testing.T) {
	err := &StepError{Step: StepDelete, StatusCode: 500, Err: ErrUnexpectedStatus}
	assert.Equal(t, "delete request failed: HTTP response code 500", err.Error())

	err = &StepError{Step: StepLogin, Err: errors.New("connection refused")}
	assert.Equal(t, "login request failed: connection refused", err.Error())
}
