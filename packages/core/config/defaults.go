package config

const (
	DefaultScheme     = "https"
	DefaultConfigName = "PGE Corporate"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Scheme:             DefaultScheme,
		ConfigName:         DefaultConfigName,
		InsecureSkipVerify: BoolPtr(false),
		BasicAuth:          BoolPtr(false),
		Timeout:            0, // transport defaults
		LogFormat:          "text",
		LogLevel:           "info",
		Output:             "console",
		NoColor:            BoolPtr(false),
	}
}

// SampleConfig is written by `proteusctl init`.
func SampleConfig() *Config {
	c := DefaultConfig()
	c.Host = "proteus.example.com"
	c.Username = "${PROTEUS_USERNAME}"
	c.Password = "${PROTEUS_PASSWORD}"
	c.IPAddress = "10.0.0.10"
	// Proteus appliances usually ship self-signed certificates.
	c.InsecureSkipVerify = BoolPtr(true)
	return c
}
