// Package output renders the result of a delete-device run.
//
// Supported output formats:
//   - Console: colored step-by-step summary for terminals
//   - JSON: machine-readable result, written once the run is over
//
// Formatters that accumulate the result before writing also implement
// Flush.
package output
