// Package http provides the request helper used for every Proteus API call.
//
// A Call wraps exactly one HTTP(S) request/response exchange:
//   - Transport setup per call (no pooling, no shared state between calls)
//   - Explicit, opt-in skipping of TLS certificate validation
//   - Preemptive basic authentication scoped to the configured host
//   - Order-preserving request headers with xml/json content-type helpers
//   - Forced Connection: close on every request
//   - Single-read response bodies with gzip/deflate decoding
package http
