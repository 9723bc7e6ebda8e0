package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"
)

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"

	// DefaultHTTPPort is used when the host carries no port and the scheme is http
	DefaultHTTPPort = "80"
	// DefaultHTTPSPort is used when the host carries no port and the scheme is https
	DefaultHTTPSPort = "443"
)

var (
	ErrEmptyHost         = errors.New("host is required")
	ErrInvalidHost       = errors.New("invalid host")
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	ErrNoMethod          = errors.New("no request method configured")
	ErrNotExecuted       = errors.New("request has not been executed")
	ErrBodyConsumed      = errors.New("response body already consumed")
)

// Call is a single request/response exchange. Every Call builds its own
// transport; nothing is shared or reused between calls.
type Call struct {
	host               string // host:port
	hostname           string
	scheme             string
	username           string
	password           string
	insecureSkipVerify bool
	timeout            time.Duration
	proxyURL           string

	transport  *http.Transport
	httpClient *http.Client

	request  *Request
	response *Response
	released bool
}

type ClientOption func(*Call)

// WithInsecureSkipVerify makes https calls trust any server certificate.
// Only meant for appliances with self-signed certificates.
func WithInsecureSkipVerify(skip bool) ClientOption {
	return func(c *Call) {
		c.insecureSkipVerify = skip
	}
}

// WithBasicAuth enables preemptive basic auth. It is ignored unless both
// username and password are non-empty.
func WithBasicAuth(username, password string) ClientOption {
	return func(c *Call) {
		c.username = username
		c.password = password
	}
}

// WithTimeout bounds the whole exchange. Zero keeps the transport defaults.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Call) {
		c.timeout = d
	}
}

// WithProxy sets the proxy URL for the call
func WithProxy(proxyURL string) ClientOption {
	return func(c *Call) {
		c.proxyURL = proxyURL
	}
}

// Configure prepares a Call against host using scheme "http" or "https".
// A host without a port gets the scheme's default port.
func Configure(host, scheme string, opts ...ClientOption) (*Call, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, ErrEmptyHost
	}

	scheme = strings.ToLower(strings.TrimSpace(scheme))
	var port string
	switch scheme {
	case SchemeHTTP:
		port = DefaultHTTPPort
	case SchemeHTTPS:
		port = DefaultHTTPSPort
	default:
		return nil, fmt.Errorf("%w: %q (only http and https are allowed)", ErrUnsupportedScheme, scheme)
	}

	hostname, hostport, err := splitHost(host, port)
	if err != nil {
		return nil, err
	}

	c := &Call{
		host:     hostport,
		hostname: hostname,
		scheme:   scheme,
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		DisableKeepAlives:  true,
		DisableCompression: true,
	}

	if scheme == SchemeHTTPS && c.insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in via WithInsecureSkipVerify
		}
	}

	if c.proxyURL != "" {
		if err := ValidateURL(c.proxyURL); err != nil {
			return nil, fmt.Errorf("invalid proxy: %w", err)
		}
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if err := ValidateURL(c.BaseURL()); err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidHost, host, err)
	}

	c.transport = transport
	c.httpClient = &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return c, nil
}

// ValidateHost checks a host or host:port the way Configure does.
func ValidateHost(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return ErrEmptyHost
	}
	_, _, err := splitHost(host, DefaultHTTPPort)
	return err
}

// splitHost accepts a bare hostname, an IP address or host:port with a numeric
// port. URLs and paths are rejected.
func splitHost(host, defaultPort string) (hostname, hostport string, err error) {
	invalid := func(reason string) error {
		return fmt.Errorf("%w %q: %s", ErrInvalidHost, host, reason)
	}

	if strings.ContainsAny(host, "/?#@ \t") {
		return "", "", invalid("expected host or host:port, not a URL")
	}

	if h, p, splitErr := net.SplitHostPort(host); splitErr == nil {
		if h == "" {
			return "", "", invalid("missing hostname")
		}
		if n, convErr := strconv.Atoi(p); convErr != nil || n < 1 || n > 65535 {
			return "", "", invalid("port must be a number between 1 and 65535")
		}
		return h, host, nil
	}

	hostname = strings.Trim(host, "[]")
	if strings.Contains(hostname, ":") && net.ParseIP(hostname) == nil {
		return "", "", invalid("malformed host:port")
	}
	return hostname, net.JoinHostPort(hostname, defaultPort), nil
}

// BaseURL returns scheme://host:port for the call.
func (c *Call) BaseURL() string {
	return c.scheme + "://" + c.host
}

func (c *Call) req() *Request {
	if c.request == nil {
		c.request = &Request{}
	}
	return c.request
}

func (c *Call) SetGetRequest(uri string) {
	r := c.req()
	r.Method, r.URI, r.Body = MethodGet, uri, ""
}

func (c *Call) SetPostRequest(uri, body string) {
	r := c.req()
	r.Method, r.URI, r.Body = MethodPost, uri, body
}

func (c *Call) SetDeleteRequest(uri string) {
	r := c.req()
	r.Method, r.URI, r.Body = MethodDelete, uri, ""
}

func (c *Call) AddHeader(name, value string) {
	c.req().AddHeader(name, value)
}

func (c *Call) SetContentType(kind string) {
	c.req().SetContentType(kind)
}

func (c *Call) SetAcceptType(kind string) {
	c.req().SetAcceptType(kind)
}

// Headers returns a copy of the request headers in the order they were added.
func (c *Call) Headers() []Header {
	if c.request == nil {
		return nil
	}
	out := make([]Header, len(c.request.Headers))
	copy(out, c.request.Headers)
	return out
}

// Execute sends the request and returns the status code. Connection: close
// is always appended. Transport errors are returned as-is, wrapped with the
// target; there is no retry.
func (c *Call) Execute(ctx context.Context) (int, error) {
	if c.request == nil || c.request.Method == "" {
		return 0, ErrNoMethod
	}

	c.request.AddHeader("Connection", "close")

	target := c.BaseURL() + normalizeURI(c.request.URI)
	if err := ValidateURL(target); err != nil {
		return 0, err
	}

	var body io.Reader
	if c.request.Body != "" {
		body = strings.NewReader(c.request.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, c.request.Method, target, body)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}

	for _, h := range c.request.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}
	httpReq.Close = true

	if c.username != "" && c.password != "" && c.inAuthScope(httpReq.URL) {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", c.request.Method, target, err)
	}

	c.response = newResponse(httpResp, time.Since(start))
	return httpResp.StatusCode, nil
}

// inAuthScope matches the configured host on any port.
func (c *Call) inAuthScope(u *neturl.URL) bool {
	return strings.EqualFold(u.Hostname(), c.hostname)
}

// ResponseString returns the body fully read as text. The body can only be
// fetched once per call.
func (c *Call) ResponseString() (string, error) {
	if c.response == nil {
		return "", ErrNotExecuted
	}
	return c.response.BodyString()
}

// ResponseStream returns the body as a reader that can be consumed once.
func (c *Call) ResponseStream() (io.Reader, error) {
	if c.response == nil {
		return nil, ErrNotExecuted
	}
	return c.response.Stream()
}

// SetCookieHeader returns the first Set-Cookie header of the response. It is
// the only response header this helper exposes.
func (c *Call) SetCookieHeader() string {
	if c.response == nil {
		return ""
	}
	return c.response.SetCookie()
}

// Release closes the response body and drops idle connections. It must be
// called on every path; calling it more than once is harmless.
func (c *Call) Release() error {
	if c.released {
		return nil
	}
	c.released = true

	var err error
	if c.response != nil {
		err = c.response.close()
	}
	c.transport.CloseIdleConnections()
	return err
}

// Released reports whether Release has been called.
func (c *Call) Released() bool {
	return c.released
}

func normalizeURI(uri string) string {
	if uri == "" {
		return "/"
	}
	if !strings.HasPrefix(uri, "/") {
		return "/" + uri
	}
	return uri
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != SchemeHTTP && u.Scheme != SchemeHTTPS {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
