package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/proteusctl/packages/core/config"
	"github.com/abdul-hamid-achik/proteusctl/packages/core/env"
	"github.com/abdul-hamid-achik/proteusctl/packages/core/runner"
	"github.com/abdul-hamid-achik/proteusctl/packages/log"
	"github.com/abdul-hamid-achik/proteusctl/packages/notify"
	"github.com/abdul-hamid-achik/proteusctl/packages/output"
)

var deleteDeviceCmd = &cobra.Command{
	Use:   "delete-device",
	Short: "Delete a device instance from Proteus by IP address",
	Long: `Log in to the Proteus SOAP API, delete the device instance that owns an
IP address and log out again. The run stops at the first call that does not
answer 200 OK; logout is skipped when the delete fails.

Examples:
  proteusctl delete-device --host proteus.lab --ip 10.0.0.10 -u apiuser -p secret
  PROTEUS_PASSWORD=secret proteusctl delete-device --config .proteusctl.yaml --ip 10.0.0.10
  proteusctl delete-device --env-file .env --ip 10.0.0.10 -k -o json
  proteusctl delete-device --ip 10.0.0.10 --notify slack --slack-webhook https://hooks.slack.com/...`,
	Args: usageArgs(cobra.NoArgs),
	RunE: deleteDeviceCommand,
}

// deleteFlags holds the raw delete-device flag values.
type deleteFlags struct {
	configPath string
	envFile    string

	host       string
	scheme     string
	username   string
	password   string
	ipAddress  string
	configName string
	insecure   bool
	basicAuth  bool
	timeout    string
	proxy      string

	output     string
	outputFile string
	noColor    bool
	verbose    int
	logFormat  string
	logLevel   string

	notify       string
	notifyOn     string
	slackWebhook string
	slackChannel string
	teamsWebhook string
}

var deleteOpts deleteFlags

// flagEnv maps each overridable flag to its environment fallback.
var flagEnv = map[string]string{
	"host":          "PROTEUS_HOST",
	"scheme":        "PROTEUS_SCHEME",
	"username":      "PROTEUS_USERNAME",
	"password":      "PROTEUS_PASSWORD",
	"ip":            "PROTEUS_IP",
	"config-name":   "PROTEUS_CONFIG_NAME",
	"insecure":      "PROTEUS_INSECURE",
	"basic-auth":    "PROTEUS_BASIC_AUTH",
	"timeout":       "PROTEUS_TIMEOUT",
	"proxy":         "PROTEUS_PROXY",
	"output":        "PROTEUS_OUTPUT",
	"no-color":      "PROTEUS_NO_COLOR",
	"log-format":    "PROTEUS_LOG_FORMAT",
	"log-level":     "PROTEUS_LOG_LEVEL",
	"notify":        "PROTEUS_NOTIFY",
	"notify-on":     "PROTEUS_NOTIFY_ON",
	"slack-webhook": "SLACK_WEBHOOK",
	"slack-channel": "SLACK_CHANNEL",
	"teams-webhook": "TEAMS_WEBHOOK",
}

func init() {
	f := deleteDeviceCmd.Flags()

	f.StringVar(&deleteOpts.configPath, "config", getEnvString("PROTEUS_CONFIG", ""), "Path to config file (env: PROTEUS_CONFIG)")
	f.StringVar(&deleteOpts.envFile, "env-file", getEnvString("PROTEUS_ENV_FILE", ""), "Path to .env file exported before reading settings (env: PROTEUS_ENV_FILE)")

	// Connection flags
	f.StringVarP(&deleteOpts.host, "host", "H", getEnvString("PROTEUS_HOST", ""), "Proteus host, optionally host:port (env: PROTEUS_HOST)")
	f.StringVar(&deleteOpts.scheme, "scheme", getEnvString("PROTEUS_SCHEME", config.DefaultScheme), "http or https (env: PROTEUS_SCHEME)")
	f.StringVarP(&deleteOpts.username, "username", "u", getEnvString("PROTEUS_USERNAME", ""), "API username (env: PROTEUS_USERNAME)")
	f.StringVarP(&deleteOpts.password, "password", "p", "", "API password (env: PROTEUS_PASSWORD)")
	f.StringVar(&deleteOpts.ipAddress, "ip", getEnvString("PROTEUS_IP", ""), "IP address of the device instance to delete (env: PROTEUS_IP)")
	f.StringVar(&deleteOpts.configName, "config-name", getEnvString("PROTEUS_CONFIG_NAME", config.DefaultConfigName), "Proteus configuration holding the device (env: PROTEUS_CONFIG_NAME)")
	f.BoolVarP(&deleteOpts.insecure, "insecure", "k", getEnvBool("PROTEUS_INSECURE", false), "Disable SSL certificate validation (env: PROTEUS_INSECURE)")
	f.BoolVar(&deleteOpts.basicAuth, "basic-auth", getEnvBool("PROTEUS_BASIC_AUTH", false), "Also send credentials as preemptive basic auth (env: PROTEUS_BASIC_AUTH)")
	f.StringVar(&deleteOpts.timeout, "timeout", getEnvString("PROTEUS_TIMEOUT", ""), "Per-request timeout (e.g., 30s, 1m) (env: PROTEUS_TIMEOUT)")
	f.StringVar(&deleteOpts.proxy, "proxy", getEnvString("PROTEUS_PROXY", ""), "Proxy URL for HTTP requests (env: PROTEUS_PROXY)")

	// Output flags
	f.StringVarP(&deleteOpts.output, "output", "o", getEnvString("PROTEUS_OUTPUT", "console"), "Output format: console, json (env: PROTEUS_OUTPUT)")
	f.StringVar(&deleteOpts.outputFile, "output-file", getEnvString("PROTEUS_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: PROTEUS_OUTPUT_FILE)")
	f.BoolVar(&deleteOpts.noColor, "no-color", getEnvBool("PROTEUS_NO_COLOR", false), "Disable colored output (env: PROTEUS_NO_COLOR)")
	f.CountVarP(&deleteOpts.verbose, "verbose", "v", "Verbose output, enables debug logs")
	f.StringVar(&deleteOpts.logFormat, "log-format", getEnvString("PROTEUS_LOG_FORMAT", "text"), "Log format: text, json (env: PROTEUS_LOG_FORMAT)")
	f.StringVar(&deleteOpts.logLevel, "log-level", getEnvString("PROTEUS_LOG_LEVEL", "info"), "Log level: debug, info, warn, error (env: PROTEUS_LOG_LEVEL)")

	// Notification flags
	f.StringVar(&deleteOpts.notify, "notify", getEnvString("PROTEUS_NOTIFY", ""), "Notification services: slack, teams (env: PROTEUS_NOTIFY)")
	f.StringVar(&deleteOpts.notifyOn, "notify-on", getEnvString("PROTEUS_NOTIFY_ON", string(notify.NotifyFailure)), "When to notify: always, failure, success (env: PROTEUS_NOTIFY_ON)")
	f.StringVar(&deleteOpts.slackWebhook, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	f.StringVar(&deleteOpts.slackChannel, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	f.StringVar(&deleteOpts.teamsWebhook, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

func deleteDeviceCommand(cmd *cobra.Command, args []string) error {
	if deleteOpts.envFile != "" {
		if _, err := env.LoadAndExportDotEnv(deleteOpts.envFile); err != nil {
			return configError(err)
		}
	}

	fileConfig, err := config.LoadConfig(deleteOpts.configPath)
	if err != nil {
		return configError(err)
	}

	overrides, err := overridesFromFlags(cmd.Flags().Changed, &deleteOpts)
	if err != nil {
		return configError(err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runDeleteDevice(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), fileConfig.Merge(overrides), runOptions{
		verbose:    deleteOpts.verbose,
		outputFile: deleteOpts.outputFile,
	})
}

// overridesFromFlags keeps flags the user set explicitly and, for the rest,
// environment variables. The environment is read again here so that values
// exported from --env-file are seen.
func overridesFromFlags(changed func(string) bool, f *deleteFlags) (*config.Config, error) {
	str := func(name, flagVal string) string {
		if changed(name) {
			return flagVal
		}
		return os.Getenv(flagEnv[name])
	}
	boolean := func(name string, flagVal bool) *bool {
		if changed(name) {
			return config.BoolPtr(flagVal)
		}
		if os.Getenv(flagEnv[name]) != "" {
			return config.BoolPtr(getEnvBool(flagEnv[name], false))
		}
		return nil
	}

	c := &config.Config{
		Host:               str("host", f.host),
		Scheme:             str("scheme", f.scheme),
		Username:           str("username", f.username),
		Password:           str("password", f.password),
		IPAddress:          str("ip", f.ipAddress),
		ConfigName:         str("config-name", f.configName),
		InsecureSkipVerify: boolean("insecure", f.insecure),
		BasicAuth:          boolean("basic-auth", f.basicAuth),
		Proxy:              str("proxy", f.proxy),
		LogFormat:          str("log-format", f.logFormat),
		LogLevel:           str("log-level", f.logLevel),
		Output:             str("output", f.output),
		NoColor:            boolean("no-color", f.noColor),
	}

	if timeout := str("timeout", f.timeout); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: timeout %q: %v (use format like 30s, 1m, 500ms)", config.ErrInvalidConfig, timeout, err)
		}
		c.Timeout = int(d.Milliseconds())
	}

	n := &config.NotifyConfig{
		On:           str("notify-on", f.notifyOn),
		SlackWebhook: str("slack-webhook", f.slackWebhook),
		SlackChannel: str("slack-channel", f.slackChannel),
		TeamsWebhook: str("teams-webhook", f.teamsWebhook),
	}
	for _, service := range strings.Split(str("notify", f.notify), ",") {
		if service = strings.ToLower(strings.TrimSpace(service)); service != "" {
			n.Services = append(n.Services, service)
		}
	}
	if len(n.Services) > 0 || n.On != "" || n.SlackWebhook != "" || n.SlackChannel != "" || n.TeamsWebhook != "" {
		c.Notify = n
	}

	return c, nil
}

type runOptions struct {
	verbose    int
	outputFile string
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

func newFormatter(cfg *config.Config, w io.Writer, verbose bool) (Formatter, error) {
	switch strings.ToLower(cfg.Output) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "", "console":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verbose),
			output.WithNoColor(cfg.GetNoColor()),
		), nil
	}
	return nil, fmt.Errorf("%w: unknown output format %q (use console or json)", config.ErrInvalidConfig, cfg.Output)
}

func newLogger(cfg *config.Config, w io.Writer, verbose bool) (log.Logger, error) {
	format, err := log.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return log.New(log.WithOutput(w), log.WithFormat(format), log.WithLevel(level)), nil
}

// newNotifyManager returns nil when no service is configured.
func newNotifyManager(n *config.NotifyConfig) (*notify.Manager, error) {
	if n == nil || len(n.Services) == 0 {
		return nil, nil
	}

	on, err := notify.ParseNotifyOn(n.On)
	if err != nil {
		return nil, err
	}

	var notifiers []notify.Notifier
	for _, service := range n.Services {
		switch strings.ToLower(service) {
		case "slack":
			if n.SlackWebhook == "" {
				return nil, fmt.Errorf("%w: --slack-webhook is required when using --notify slack", config.ErrInvalidConfig)
			}
			var opts []notify.SlackOption
			if n.SlackChannel != "" {
				opts = append(opts, notify.WithSlackChannel(n.SlackChannel))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(n.SlackWebhook, opts...))
		case "teams":
			if n.TeamsWebhook == "" {
				return nil, fmt.Errorf("%w: --teams-webhook is required when using --notify teams", config.ErrInvalidConfig)
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(n.TeamsWebhook))
		default:
			return nil, fmt.Errorf("%w: unknown notification service %q", config.ErrInvalidConfig, service)
		}
	}

	return notify.NewManager(on, notifiers...), nil
}

func runnerConfig(cfg *config.Config) *runner.Config {
	return &runner.Config{
		Host:               cfg.Host,
		Scheme:             cfg.Scheme,
		Username:           cfg.Username,
		Password:           cfg.Password,
		IPAddress:          cfg.IPAddress,
		ConfigName:         cfg.ConfigName,
		InsecureSkipVerify: cfg.GetInsecureSkipVerify(),
		BasicAuth:          cfg.GetBasicAuth(),
		Timeout:            time.Duration(cfg.Timeout) * time.Millisecond,
		Proxy:              cfg.Proxy,
	}
}

// runDeleteDevice validates the merged configuration, runs the workflow and
// reports the result. Logs go to stderr, the formatted result to stdout or
// the output file.
func runDeleteDevice(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, opts runOptions) error {
	if opts.outputFile != "" {
		file, err := os.Create(opts.outputFile)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer file.Close()
		stdout = file
	}

	verbose := opts.verbose > 0

	formatter, err := newFormatter(cfg, stdout, verbose)
	if err != nil {
		return configError(err)
	}
	formatter.FormatHeader(version)

	flush := func(d time.Duration) error {
		if flushable, ok := formatter.(Flushable); ok {
			if err := flushable.Flush(d); err != nil {
				return fmt.Errorf("error writing output: %w", err)
			}
		}
		return nil
	}

	// Setup problems are reported through the formatter too, so JSON
	// consumers always get a document.
	fail := func(err error) error {
		formatter.FormatError(err)
		if ferr := flush(0); ferr != nil {
			return ferr
		}
		return configError(err)
	}

	logger, err := newLogger(cfg, stderr, verbose)
	if err != nil {
		return fail(err)
	}

	if err := cfg.Validate(); err != nil {
		return fail(err)
	}

	notifyManager, err := newNotifyManager(cfg.Notify)
	if err != nil {
		return fail(err)
	}

	host := runner.NewHost(logger)
	result, runErr := runner.NewRunner(runnerConfig(cfg)).Run(ctx, host)

	var certErr *tls.CertificateVerificationError
	if errors.As(runErr, &certErr) {
		logger.Error("server certificate not trusted, use -k/--insecure for self-signed appliances",
			log.Fields{"host": cfg.Host})
	}

	formatter.FormatResult(result)
	if err := flush(result.Duration); err != nil {
		return err
	}

	if notifyManager != nil {
		if err := notifyManager.Notify(notify.NewRunSummary(result)); err != nil {
			logger.Warn("failed to send notification", log.Fields{"error": err.Error()})
		}
	}

	return runErr
}
