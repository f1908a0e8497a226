// Package config handles configuration for the client component.
package config

// Config holds runtime settings for the taskgrid client.
//
// Fields:
//   - ServerURL: base URL of the backend HTTP endpoint.
//   - KeyDir: directory (relative to the working directory) holding the
//     client's RSA keypair; created with a fresh pair when absent.
type Config struct {
	ServerURL string
	KeyDir    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.KeyDir = "keys"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
