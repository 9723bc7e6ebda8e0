package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/proteusctl/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	RunID      string     `json:"runId,omitempty"`
	Host       string     `json:"host,omitempty"`
	IPAddress  string     `json:"ipAddress,omitempty"`
	Passed     bool       `json:"passed"`
	FailedStep string     `json:"failedStep,omitempty"`
	Steps      []JSONStep `json:"steps"`
	Error      string     `json:"error,omitempty"`
	Duration   float64    `json:"duration"`
	Time       string     `json:"time"`
}

// JSONStep represents a single SOAP call
type JSONStep struct {
	Name       string  `json:"name"`
	Operation  string  `json:"operation"`
	StatusCode int     `json:"statusCode,omitempty"`
	Passed     bool    `json:"passed"`
	Duration   float64 `json:"duration"`
	Error      string  `json:"error,omitempty"`
	Body       string  `json:"body,omitempty"`
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer io.Writer
	output JSONOutput
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		output: JSONOutput{Steps: make([]JSONStep, 0)},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	f.output.RunID = result.RunID
	f.output.Host = result.Host
	f.output.IPAddress = result.IPAddress
	f.output.Passed = result.Passed
	f.output.FailedStep = result.FailedStep

	for _, s := range result.Steps {
		step := JSONStep{
			Name:       s.Name,
			Operation:  s.Operation,
			StatusCode: s.StatusCode,
			Passed:     s.Passed,
			Duration:   float64(s.Duration.Milliseconds()),
			Body:       s.Body,
		}
		if s.Error != nil {
			step.Error = s.Error.Error()
		}
		f.output.Steps = append(f.output.Steps, step)
	}
}

// FormatError records errors that happen before any step ran, such as an
// invalid configuration.
func (f *JSONFormatter) FormatError(err error) {
	f.output.Error = err.Error()
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	f.output.Duration = float64(totalDuration.Milliseconds())
	f.output.Time = time.Now().Format(time.RFC3339)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.output)
}
