// Package config loads the CLI configuration: a YAML file, a .env file and
// WEBBANK_* environment overrides, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Bank identifiers accepted in the bank field.
const (
	BankCreditMutuel  = "creditmutuel"
	BankCaisseEpargne = "caissedepargne"
)

const envPrefix = "WEBBANK_"

var ErrInvalidConfig = errors.New("invalid config")

// Config holds everything needed to open one bank session.
type Config struct {
	Bank     string `yaml:"bank"`
	Login    string `yaml:"login"`
	Password string `yaml:"password"`
	// AccountNumber is the Caisse d'Épargne user number (nuser), asked
	// for by some regions next to the password.
	AccountNumber string `yaml:"account_number"`
	// Domain overrides the regional host of banks that have one.
	Domain string `yaml:"domain"`

	UserAgent         string  `yaml:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Timeout           string  `yaml:"timeout"`

	Browser BrowserConfig `yaml:"browser"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// BrowserConfig switches fetching to a real Chrome driven by rod.
type BrowserConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Headless bool   `yaml:"headless"`
	Bin      string `yaml:"bin"`
}

type LogConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns the configuration used for every field the file
// and environment leave unset.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerSecond: 2,
		Timeout:           "30s",
		Browser: BrowserConfig{
			Headless: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path, then envFile, then the environment. A
// missing config or env file is not an error. An empty path skips the file.
func Load(path, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if envFile != "" {
		// Variables already set in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// applyEnvOverrides applies WEBBANK_* variables on top of cfg.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"BANK":           &c.Bank,
		"LOGIN":          &c.Login,
		"PASSWORD":       &c.Password,
		"ACCOUNT_NUMBER": &c.AccountNumber,
		"DOMAIN":         &c.Domain,
		"USER_AGENT":     &c.UserAgent,
		"TIMEOUT":        &c.Timeout,
		"BROWSER_BIN":    &c.Browser.Bin,
		"LOG_LEVEL":      &c.Log.Level,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"BROWSER":          &c.Browser.Enabled,
		"BROWSER_HEADLESS": &c.Browser.Headless,
		"LOG_DEVELOPMENT":  &c.Log.Development,
		"METRICS":          &c.Metrics.Enabled,
	}
	for name, dst := range bools {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q: %v", ErrInvalidConfig, envPrefix, name, v, err)
		}
		*dst = b
	}

	if v, ok := lookup("REQUESTS_PER_SECOND"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %sREQUESTS_PER_SECOND=%q: %v", ErrInvalidConfig, envPrefix, v, err)
		}
		c.RequestsPerSecond = rps
	}
	return nil
}

// Validate checks that a session can be opened with c.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Bank) {
	case BankCreditMutuel, BankCaisseEpargne:
	case "":
		problems = append(problems, "bank is required")
	default:
		problems = append(problems, fmt.Sprintf("unknown bank %q", c.Bank))
	}
	if c.Login == "" {
		problems = append(problems, "login is required")
	}
	if c.Password == "" {
		problems = append(problems, "password is required")
	}
	if c.RequestsPerSecond < 0 {
		problems = append(problems, "requests_per_second must not be negative")
	}
	if _, err := time.ParseDuration(c.Timeout); c.Timeout != "" && err != nil {
		problems = append(problems, fmt.Sprintf("timeout: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// GetTimeout returns the per-request timeout, 30s when unset or invalid.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// BankName returns the normalised bank identifier.
func (c *Config) BankName() string {
	return strings.ToLower(c.Bank)
}
