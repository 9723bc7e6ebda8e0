package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/proteusctl/packages/log"
	"github.com/abdul-hamid-achik/proteusctl/packages/mock"
	"github.com/abdul-hamid-achik/proteusctl/packages/proteus"
)

var (
	mockPortFlag       int
	mockDelayFlag      string
	mockVerboseFlag    bool
	mockFailLoginFlag  int
	mockFailDeleteFlag int
	mockFailLogoutFlag int
)

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Start a fake Proteus SOAP endpoint",
	Long: `Start an HTTP server that answers login, deleteDeviceInstance and logout
on /Services/API the way Proteus does, for trying proteusctl without an
appliance.

The mock server:
- Issues a JSESSIONID cookie on login
- Rejects delete and logout calls without a valid session
- Can force an HTTP status for any of the three operations
- Can add artificial delays to simulate network latency

Examples:
  proteusctl mock
  proteusctl mock --port 9000 --delay 200ms
  proteusctl mock --fail-delete 500
  proteusctl delete-device --scheme http --host localhost:8080 --ip 10.0.0.10 -u a -p b`,
	Args: usageArgs(cobra.NoArgs),
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVar(&mockPortFlag, "port", getEnvInt("PROTEUS_MOCK_PORT", 8080), "Port to run the mock server on (env: PROTEUS_MOCK_PORT)")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	mockCmd.Flags().BoolVarP(&mockVerboseFlag, "verbose", "v", false, "Log every request")
	mockCmd.Flags().IntVar(&mockFailLoginFlag, "fail-login", 0, "HTTP status to answer login with")
	mockCmd.Flags().IntVar(&mockFailDeleteFlag, "fail-delete", 0, "HTTP status to answer deleteDeviceInstance with")
	mockCmd.Flags().IntVar(&mockFailLogoutFlag, "fail-logout", 0, "HTTP status to answer logout with")
}

func mockOptions(delay string, failures map[string]int) ([]mock.Option, error) {
	var opts []mock.Option

	if delay != "0" && delay != "" {
		d, err := time.ParseDuration(delay)
		if err != nil {
			return nil, usageError(fmt.Errorf("invalid delay value %q: %w", delay, err))
		}
		opts = append(opts, mock.WithDelay(d))
	}

	for op, status := range failures {
		if status == 0 {
			continue
		}
		if status < 100 || status > 599 || http.StatusText(status) == "" {
			return nil, usageError(fmt.Errorf("invalid status %d for %s", status, op))
		}
		opts = append(opts, mock.WithStatus(op, status))
	}

	return opts, nil
}

func mockCommand(cmd *cobra.Command, args []string) error {
	opts, err := mockOptions(mockDelayFlag, map[string]int{
		proteus.OpLogin:                mockFailLoginFlag,
		proteus.OpDeleteDeviceInstance: mockFailDeleteFlag,
		proteus.OpLogout:               mockFailLogoutFlag,
	})
	if err != nil {
		return err
	}

	level := "info"
	if mockVerboseFlag {
		level = "debug"
	}
	logger := log.New(log.WithOutput(cmd.ErrOrStderr()), log.WithLevel(level))

	server := mock.NewServer(append(opts,
		mock.WithPort(mockPortFlag),
		mock.WithVerbose(mockVerboseFlag),
		mock.WithLogger(logger),
	)...)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down mock server...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return server.StartWithContext(ctx)
}
