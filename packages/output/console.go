package output

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/proteusctl/packages/core/runner"
)

// truncate shortens long response bodies for terminal display, counting runes
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold(fmt.Sprintf("Deleting device %s on %s", result.IPAddress, result.Host)))
	if f.verbose {
		fmt.Fprintf(f.writer, "Run: %s\n", result.RunID)
	}
	fmt.Fprintf(f.writer, "\n")

	for _, s := range result.Steps {
		symbol := green("✓")
		if !s.Passed {
			symbol = red("✗")
		}

		status := "-"
		if s.StatusCode != 0 {
			status = fmt.Sprintf("%d", s.StatusCode)
		}

		fmt.Fprintf(f.writer, "  %s %-7s %s %s\n", symbol, s.Name, status, cyan(fmt.Sprintf("(%dms)", s.Duration.Milliseconds())))

		if f.verbose && s.Cookie != "" {
			fmt.Fprintf(f.writer, "    Cookie: %s\n", s.Cookie)
		}

		if s.Error != nil {
			fmt.Fprintf(f.writer, "    %s %v\n", red("→"), s.Error)
		}
		if s.Body != "" {
			fmt.Fprintf(f.writer, "      %s\n", truncate(s.Body, 200))
		}
	}

	fmt.Fprintf(f.writer, "\n")
	if result.Passed {
		fmt.Fprintf(f.writer, "Result: %s\n", green("device instance deleted"))
	} else {
		fmt.Fprintf(f.writer, "Result: %s\n", red("failed at "+result.FailedStep))
	}
	fmt.Fprintf(f.writer, "Time:   %dms\n", result.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("proteusctl"), version)
}
