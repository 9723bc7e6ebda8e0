package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/proteusctl/packages/http"
)

//go:embed schema.json
var schemaJSON []byte

// ErrInvalidConfig is returned for files that fail schema or field validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the proteusctl configuration
type Config struct {
	Host               string        `json:"host,omitempty" yaml:"host,omitempty"`
	Scheme             string        `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	Username           string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password           string        `json:"password,omitempty" yaml:"password,omitempty"`
	IPAddress          string        `json:"ipAddress,omitempty" yaml:"ipAddress,omitempty"`
	ConfigName         string        `json:"configName,omitempty" yaml:"configName,omitempty"`
	InsecureSkipVerify *bool         `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
	BasicAuth          *bool         `json:"basicAuth,omitempty" yaml:"basicAuth,omitempty"`
	Timeout            int           `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	Proxy              string        `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	LogFormat          string        `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
	LogLevel           string        `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	Output             string        `json:"output,omitempty" yaml:"output,omitempty"`
	NoColor            *bool         `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	Notify             *NotifyConfig `json:"notify,omitempty" yaml:"notify,omitempty"`
}

// NotifyConfig configures webhook notifications about run outcomes
type NotifyConfig struct {
	Services     []string `json:"services,omitempty" yaml:"services,omitempty"`
	On           string   `json:"on,omitempty" yaml:"on,omitempty"`
	SlackWebhook string   `json:"slackWebhook,omitempty" yaml:"slackWebhook,omitempty"`
	SlackChannel string   `json:"slackChannel,omitempty" yaml:"slackChannel,omitempty"`
	TeamsWebhook string   `json:"teamsWebhook,omitempty" yaml:"teamsWebhook,omitempty"`
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetInsecureSkipVerify returns the certificate validation override, defaulting to false
func (c *Config) GetInsecureSkipVerify() bool {
	return getBool(c.InsecureSkipVerify, false)
}

// GetBasicAuth returns whether credentials are also sent as basic auth, defaulting to false
func (c *Config) GetBasicAuth() bool {
	return getBool(c.BasicAuth, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".proteusctl.json",
	"proteusctl.json",
	".proteusctl.yaml",
	".proteusctl.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Both formats are checked against the same schema, so YAML goes through
	// a generic decode and is re-encoded as JSON first.
	document := data
	if isYAML(path) {
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
		if document, err = json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if err := ValidateDocument(document); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(document, config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	config.ExpandEnv()
	return config, nil
}

// ValidateDocument checks a JSON document against the configuration schema.
func ValidateDocument(document []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv only touches the ${VAR} form so that a bare '$' in a password
// survives untouched.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	})
}

// ExpandEnv replaces ${VAR} references in string settings with values from
// the process environment.
func (c *Config) ExpandEnv() {
	for _, field := range []*string{
		&c.Host, &c.Scheme, &c.Username, &c.Password, &c.IPAddress,
		&c.ConfigName, &c.Proxy, &c.LogFormat, &c.LogLevel, &c.Output,
	} {
		*field = expandEnv(*field)
	}
	if c.Notify != nil {
		c.Notify.SlackWebhook = expandEnv(c.Notify.SlackWebhook)
		c.Notify.SlackChannel = expandEnv(c.Notify.SlackChannel)
		c.Notify.TeamsWebhook = expandEnv(c.Notify.TeamsWebhook)
	}
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Host != "" {
		result.Host = other.Host
	}
	if other.Scheme != "" {
		result.Scheme = other.Scheme
	}
	if other.Username != "" {
		result.Username = other.Username
	}
	if other.Password != "" {
		result.Password = other.Password
	}
	if other.IPAddress != "" {
		result.IPAddress = other.IPAddress
	}
	if other.ConfigName != "" {
		result.ConfigName = other.ConfigName
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.LogFormat != "" {
		result.LogFormat = other.LogFormat
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.Output != "" {
		result.Output = other.Output
	}

	// Boolean flags - only override if explicitly set in other config
	if other.InsecureSkipVerify != nil {
		result.InsecureSkipVerify = other.InsecureSkipVerify
	}
	if other.BasicAuth != nil {
		result.BasicAuth = other.BasicAuth
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if other.Notify != nil {
		merged := NotifyConfig{}
		if result.Notify != nil {
			merged = *result.Notify
		}
		if len(other.Notify.Services) > 0 {
			merged.Services = other.Notify.Services
		}
		if other.Notify.On != "" {
			merged.On = other.Notify.On
		}
		if other.Notify.SlackWebhook != "" {
			merged.SlackWebhook = other.Notify.SlackWebhook
		}
		if other.Notify.SlackChannel != "" {
			merged.SlackChannel = other.Notify.SlackChannel
		}
		if other.Notify.TeamsWebhook != "" {
			merged.TeamsWebhook = other.Notify.TeamsWebhook
		}
		result.Notify = &merged
	}

	return &result
}

// Validate checks that everything a delete-device run needs is present.
func (c *Config) Validate() error {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if c.IPAddress == "" {
		missing = append(missing, "ipAddress")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}

	if c.Scheme != "http" && c.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", ErrInvalidConfig, c.Scheme)
	}

	if err := http.ValidateHost(c.Host); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if net.ParseIP(c.IPAddress) == nil {
		return fmt.Errorf("%w: ipAddress %q is not an IP address", ErrInvalidConfig, c.IPAddress)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}

	return nil
}

// SaveConfig saves the configuration to a file. YAML is used for .yaml and
// .yml paths, JSON otherwise.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}
