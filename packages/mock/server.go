// Package mock provides a fake Proteus SOAP endpoint for lab runs and tests.
//
// It answers POST /Services/API for login, deleteDeviceInstance and logout,
// issues JSESSIONID cookies on login, insists on that cookie afterwards and
// records every request it sees.
package mock

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/proteusctl/packages/log"
	"github.com/abdul-hamid-achik/proteusctl/packages/proteus"
)

// Exchange is one request received by the server.
type Exchange struct {
	Operation string
	Method    string
	Path      string
	Cookie    string
	Cookie2   string
	Header    http.Header
	Body      string
	Status    int
	// SetCookie is the Set-Cookie header the server answered with, if any.
	SetCookie string
}

type Server struct {
	port    int
	delay   time.Duration
	verbose bool
	logger  log.Logger

	mu        sync.Mutex
	statuses  map[string]int
	sessions  map[string]bool
	exchanges []Exchange
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithVerbose logs every exchange
func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

func WithLogger(logger log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStatus forces the HTTP status returned for an operation
// (proteus.OpLogin, proteus.OpDeleteDeviceInstance or proteus.OpLogout).
func WithStatus(operation string, status int) Option {
	return func(s *Server) {
		s.statuses[operation] = status
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		port:     8080,
		logger:   log.Discard(),
		statuses: make(map[string]int),
		sessions: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchanges returns a copy of every request received so far, in order.
func (s *Server) Exchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Exchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// Operations returns the operation of every request received so far.
func (s *Server) Operations() []string {
	var ops []string
	for _, e := range s.Exchanges() {
		ops = append(ops, e.Operation)
	}
	return ops
}

// StartWithContext serves until ctx is done.
func (s *Server) StartWithContext(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info(fmt.Sprintf("Mock Proteus starting on http://localhost:%d%s", s.port, proteus.APIPath))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if r.URL.Path != proteus.APIPath {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	body := string(data)

	exchange := Exchange{
		Operation: proteus.Operation(body),
		Method:    r.Method,
		Path:      r.URL.Path,
		Cookie:    r.Header.Get("Cookie"),
		Cookie2:   r.Header.Get("Cookie2"),
		Header:    r.Header.Clone(),
		Body:      body,
	}

	status := s.respond(w, exchange)
	exchange.Status = status
	exchange.SetCookie = w.Header().Get("Set-Cookie")

	s.mu.Lock()
	s.exchanges = append(s.exchanges, exchange)
	s.mu.Unlock()

	if s.verbose {
		s.logger.Info(fmt.Sprintf("%s %s %s -> %d (%s)", r.Method, r.URL.Path, exchange.Operation, status, time.Since(start)))
	}
}

func (s *Server) respond(w http.ResponseWriter, e Exchange) int {
	w.Header().Set("Content-Type", "text/xml;charset=UTF-8")

	s.mu.Lock()
	forced, hasForced := s.statuses[e.Operation]
	s.mu.Unlock()

	if hasForced && forced != http.StatusOK {
		return writeFault(w, forced, fmt.Sprintf("forced failure for %s", e.Operation))
	}

	switch e.Operation {
	case proteus.OpLogin:
		cookie := "JSESSIONID=" + strings.ReplaceAll(uuid.NewString(), "-", "")
		s.mu.Lock()
		s.sessions[cookie] = true
		s.mu.Unlock()
		w.Header().Add("Set-Cookie", cookie+"; Path=/; HttpOnly")
		return writeEnvelope(w, http.StatusOK, `<ns2:loginResponse xmlns:ns2="`+proteus.APINamespace+`"/>`)

	case proteus.OpDeleteDeviceInstance, proteus.OpLogout:
		s.mu.Lock()
		valid := s.sessions[e.Cookie]
		if valid && e.Operation == proteus.OpLogout {
			delete(s.sessions, e.Cookie)
		}
		s.mu.Unlock()
		if !valid {
			return writeFault(w, http.StatusInternalServerError, "Not logged in")
		}
		return writeEnvelope(w, http.StatusOK, `<ns2:`+e.Operation+`Response xmlns:ns2="`+proteus.APINamespace+`"/>`)
	}

	return writeFault(w, http.StatusInternalServerError, "Unknown operation")
}

func writeEnvelope(w http.ResponseWriter, status int, body string) int {
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `<soap:Envelope xmlns:soap="`+proteus.SOAPEnvelopeNamespace+`"><soap:Body>`+body+`</soap:Body></soap:Envelope>`)
	return status
}

func writeFault(w http.ResponseWriter, status int, msg string) int {
	return writeEnvelope(w, status, `<soap:Fault><faultcode>soap:Server</faultcode><faultstring>`+msg+`</faultstring></soap:Fault>`)
}
