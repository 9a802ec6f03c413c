// Package config loads dashboard settings from defaults, an optional config file and
// APIDASH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override (APIDASH_FETCH_TIMEOUT, ...).
const EnvPrefix = "APIDASH"

type Fetch struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	InsecureFallback bool          `mapstructure:"insecure_fallback"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	UserAgent        string        `mapstructure:"user_agent"`
	GeoIP            bool          `mapstructure:"geoip"`
	GeoIPCountryDB   string        `mapstructure:"geoip_country_db"`
	GeoIPASNDB       string        `mapstructure:"geoip_asn_db"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Server struct {
	Addr       string        `mapstructure:"addr"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	CookieName string        `mapstructure:"cookie_name"`
}

type Metrics struct {
	Enabled bool `mapstructure:"enabled"`
}

type Charts struct {
	Width  int  `mapstructure:"width"`
	Height int  `mapstructure:"height"`
	Hints  bool `mapstructure:"hints"`
}

// Config is the full settings tree.
type Config struct {
	URL     string  `mapstructure:"url"`
	Fetch   Fetch   `mapstructure:"fetch"`
	Log     Log     `mapstructure:"log"`
	Server  Server  `mapstructure:"server"`
	Metrics Metrics `mapstructure:"metrics"`
	Charts  Charts  `mapstructure:"charts"`
}

var defaults = map[string]interface{}{
	"url":                     "",
	"fetch.timeout":           30 * time.Second,
	"fetch.insecure_fallback": true,
	"fetch.max_body_bytes":    int64(64 << 20),
	"fetch.user_agent":        "apidash/1.0",
	"fetch.geoip":             false,
	"fetch.geoip_country_db":  "",
	"fetch.geoip_asn_db":      "",
	"log.level":               "info",
	"log.format":              "text",
	"server.addr":             "127.0.0.1:8080",
	"server.session_ttl":      30 * time.Minute,
	"server.cookie_name":      "apidash_session",
	"metrics.enabled":         true,
	"charts.width":            900,
	"charts.height":           420,
	"charts.hints":            true,
}

// New returns a viper instance with defaults, search paths and env binding applied.
// path, when non-empty, names an explicit config file.
func New(path string) *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("apidash")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.apidash")
		v.AddConfigPath("/etc/apidash")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. A missing config file is not an error unless path
// was given explicitly.
func Load(path string) (Config, error) {
	return LoadFrom(New(path))
}

// LoadFrom reads and unmarshals an already prepared viper instance.
func LoadFrom(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot work with.
func (c Config) Validate() error {
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive, got %s", c.Fetch.Timeout)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be positive, got %d", c.Fetch.MaxBodyBytes)
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive, got %s", c.Server.SessionTTL)
	}
	if c.Charts.Width <= 0 || c.Charts.Height <= 0 {
		return fmt.Errorf("charts size must be positive, got %dx%d", c.Charts.Width, c.Charts.Height)
	}
	return nil
}

// Default returns the built-in defaults without reading files or the environment.
func Default() Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}
