package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// envPrefix namespaces every environment override.
const envPrefix = "ALIASMAIL_"

type ServerConfig struct {
	Port int `toml:"port"`
}

// IMAPConfig holds the static parameters of the one shared mailbox account.
type IMAPConfig struct {
	Server             string   `toml:"server"`
	Port               int      `toml:"port"`
	Username           string   `toml:"username"`
	Password           string   `toml:"password"`
	TLS                bool     `toml:"tls"` // implicit TLS (993); false only for local test servers
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
	Timeout            Duration `toml:"timeout"` // connect and per-command read timeout
	Folder             string   `toml:"folder"`
}

// Address returns host:port for dialing.
func (c IMAPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

type AliasConfig struct {
	Domain string `toml:"domain"`
}

type VerificationConfig struct {
	ProviderURLPattern string   `toml:"provider_url_pattern"`
	WaitAttempts       int      `toml:"wait_attempts"`
	WaitInterval       Duration `toml:"wait_interval"`
}

type RateLimitConfig struct {
	Requests int      `toml:"requests"`
	Window   Duration `toml:"window"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Server       ServerConfig       `toml:"server"`
	IMAP         IMAPConfig         `toml:"imap"`
	Alias        AliasConfig        `toml:"alias"`
	Verification VerificationConfig `toml:"verification"`
	RateLimit    RateLimitConfig    `toml:"rate_limit"`
	Log          LogConfig          `toml:"log"`
}

// Duration lets TOML values like "10s" decode into a time.Duration.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for toml.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	var config Config

	config.Server.Port = 3000

	config.IMAP.Port = 993
	config.IMAP.TLS = true
	config.IMAP.Timeout = Duration{10 * time.Second}
	config.IMAP.Folder = "INBOX"

	config.Verification.WaitAttempts = 20
	config.Verification.WaitInterval = Duration{5 * time.Second}

	config.RateLimit.Requests = 100
	config.RateLimit.Window = Duration{time.Minute}

	config.Log.Level = "info"

	return &config
}

// LoadConfig reads the TOML file at filepath (missing file is allowed), then applies
// .env and environment overrides and validates the result.
func LoadConfig(filepath string) (*Config, error) {
	config := Default()

	if filepath != "" {
		if _, err := os.Stat(filepath); err == nil {
			if _, err := toml.DecodeFile(filepath, config); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", filepath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", filepath, err)
		}
	}

	// A missing .env is the normal case in production.
	_ = godotenv.Load()

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overrides values from the environment. lookup is injected for tests.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = n
		}
		return nil
	}

	str("IMAP_SERVER", &c.IMAP.Server)
	str("IMAP_USERNAME", &c.IMAP.Username)
	str("IMAP_PASSWORD", &c.IMAP.Password)
	str("IMAP_FOLDER", &c.IMAP.Folder)
	str("ALIAS_DOMAIN", &c.Alias.Domain)
	str("LOG_LEVEL", &c.Log.Level)

	if err := num("IMAP_PORT", &c.IMAP.Port); err != nil {
		return err
	}
	if err := num("SERVER_PORT", &c.Server.Port); err != nil {
		return err
	}

	if v, ok := lookup(envPrefix + "IMAP_TLS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sIMAP_TLS: %w", envPrefix, err)
		}
		c.IMAP.TLS = b
	}
	if v, ok := lookup(envPrefix + "IMAP_TIMEOUT"); ok && v != "" {
		if err := c.IMAP.Timeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%sIMAP_TIMEOUT: %w", envPrefix, err)
		}
	}

	return nil
}

// Validate checks the settings the mailbox client cannot run without.
func (c *Config) Validate() error {
	if c.IMAP.Server == "" {
		return fmt.Errorf("imap.server is required")
	}
	if c.IMAP.Username == "" || c.IMAP.Password == "" {
		return fmt.Errorf("imap.username and imap.password are required")
	}
	if c.IMAP.Port <= 0 {
		return fmt.Errorf("imap.port must be positive, got %d", c.IMAP.Port)
	}
	if c.IMAP.Timeout.Duration <= 0 {
		return fmt.Errorf("imap.timeout must be positive")
	}
	if c.Verification.ProviderURLPattern != "" {
		if _, err := regexp.Compile(c.Verification.ProviderURLPattern); err != nil {
			return fmt.Errorf("verification.provider_url_pattern: %w", err)
		}
	}
	if c.Verification.WaitAttempts < 1 {
		return fmt.Errorf("verification.wait_attempts must be at least 1")
	}
	return nil
}
