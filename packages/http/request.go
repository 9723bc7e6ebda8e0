package http

import (
	"strings"
)

const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodDelete = "DELETE"
)

// mediaTypes maps the short kinds accepted by SetContentType and SetAcceptType.
var mediaTypes = map[string]string{
	"xml":  "application/xml",
	"json": "application/json",
}

// MediaType returns the MIME type for a short kind such as "xml" or "json".
func MediaType(kind string) (string, bool) {
	mt, ok := mediaTypes[kind]
	return mt, ok
}

// Header is a single request header. Requests keep headers as an ordered list
// so that repeated names are all sent.
type Header struct {
	Name  string
	Value string
}

type Request struct {
	Method  string
	URI     string
	Body    string
	Headers []Header
}

// AddHeader appends a header. Existing headers with the same name are kept.
func (r *Request) AddHeader(name, value string) *Request {
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
	return r
}

// SetContentType adds a Content-Type header for "xml" or "json". Other kinds are ignored.
func (r *Request) SetContentType(kind string) *Request {
	if mt, ok := MediaType(kind); ok {
		r.AddHeader("Content-Type", mt)
	}
	return r
}

// SetAcceptType adds an Accept header for "xml" or "json". Other kinds are ignored.
func (r *Request) SetAcceptType(kind string) *Request {
	if mt, ok := MediaType(kind); ok {
		r.AddHeader("Accept", mt)
	}
	return r
}

// values returns every value added under name, in insertion order.
func (r *Request) values(name string) []string {
	var out []string
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}
