package http

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

type Response struct {
	StatusCode int
	Status     string
	Duration   time.Duration

	header   http.Header
	body     io.ReadCloser
	consumed bool
}

func newResponse(resp *http.Response, duration time.Duration) *Response {
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Duration:   duration,
		header:     resp.Header,
		body:       resp.Body,
	}
}

// SetCookie returns the first Set-Cookie header of the response.
func (r *Response) SetCookie() string {
	return r.header.Get("Set-Cookie")
}

// Stream hands out the body for reading. It can be called once; later calls
// return ErrBodyConsumed.
func (r *Response) Stream() (io.Reader, error) {
	if r.consumed {
		return nil, ErrBodyConsumed
	}
	r.consumed = true
	if r.body == nil {
		return strings.NewReader(""), nil
	}
	return decodeBody(r.body, r.header.Get("Content-Encoding"))
}

// BodyString reads the whole body. Like Stream, it can be called once.
func (r *Response) BodyString() (string, error) {
	reader, err := r.Stream()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *Response) close() error {
	if r.body == nil {
		return nil
	}
	// Drain what is left so the transport can shut the socket cleanly.
	_, _ = io.Copy(io.Discard, io.LimitReader(r.body, 64<<10))
	err := r.body.Close()
	r.body = nil
	return err
}

// decodeBody undoes gzip or deflate content-encoding. Requests advertise
// Accept-Encoding by hand, so the transport leaves decoding to us.
func decodeBody(body io.Reader, encoding string) (io.Reader, error) {
	var (
		reader io.Reader
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip", "x-gzip":
		reader, err = gzip.NewReader(body)
	case "deflate":
		reader, err = zlib.NewReader(body)
	default:
		return body, nil
	}
	if errors.Is(err, io.EOF) {
		return strings.NewReader(""), nil
	}
	if err != nil {
		return nil, err
	}
	return reader, nil
}
