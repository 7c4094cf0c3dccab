// Package config provides configuration management for msp-report.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIURL is the upstream API base URL used when none is configured.
	DefaultAPIURL = "https://api.netbird.io/api"
	// DefaultAuthScheme is the Authorization header scheme sent with the API token.
	DefaultAuthScheme = "Bearer"
	// DefaultHTTPTimeout bounds every upstream request.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultLogLevel is the zerolog level used when none is configured.
	DefaultLogLevel = "info"
)

var (
	// ErrMissingToken is returned when no API token is configured.
	ErrMissingToken = errors.New("api token is required (set MSP_API_TOKEN or api_token in the config file)")
	// ErrMissingURL is returned when the API base URL is empty.
	ErrMissingURL = errors.New("api url is required")
	// ErrInsecurePermissions is returned when the config file is readable by other users.
	ErrInsecurePermissions = errors.New("config file is readable by group or others")
)

// DefaultConfigDir returns the default config directory (~/.msp-report).
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".msp-report"), nil
}

// DefaultConfigPath returns the default config file path (~/.msp-report/config.yml).
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// DefaultHistoryPath returns the default run history database path.
func DefaultHistoryPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// ProxyConfig holds outbound proxy settings for upstream requests.
type ProxyConfig struct {
	HTTPProxy   string `yaml:"http_proxy,omitempty"`
	HTTPSProxy  string `yaml:"https_proxy,omitempty"`
	NoProxy     string `yaml:"no_proxy,omitempty"`
	SOCKS5Proxy string `yaml:"socks5_proxy,omitempty"`
}

// HasProxy reports whether any proxy is configured.
func (p *ProxyConfig) HasProxy() bool {
	return p != nil && (p.HTTPProxy != "" || p.HTTPSProxy != "" || p.SOCKS5Proxy != "")
}

// SlackConfig configures the post-run summary notification.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url,omitempty"`
	Channel    string `yaml:"channel,omitempty"`
	Username   string `yaml:"username,omitempty"`
}

// Enabled reports whether a webhook URL is configured.
func (s SlackConfig) Enabled() bool {
	return s.WebhookURL != ""
}

// S3Config configures archiving of report artifacts to an S3-compatible bucket.
type S3Config struct {
	Bucket          string `yaml:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	UsePathStyle    bool   `yaml:"use_path_style,omitempty"`
}

// Enabled reports whether a bucket is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// ReportConfig holds the msp-report configuration.
type ReportConfig struct {
	APIURL      string        `yaml:"api_url,omitempty"`
	APIToken    string        `yaml:"api_token,omitempty"`
	AuthScheme  string        `yaml:"auth_scheme,omitempty"`
	HTTPTimeout time.Duration `yaml:"http_timeout,omitempty"`
	OutputDir   string        `yaml:"output_dir,omitempty"`
	LogLevel    string        `yaml:"log_level,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	PlanFields  []string      `yaml:"plan_fields,omitempty"`
	HistoryDB   string        `yaml:"history_db,omitempty"`
	MetricsFile string        `yaml:"metrics_file,omitempty"`
	Schedule    string        `yaml:"schedule,omitempty"`
	Proxy       ProxyConfig   `yaml:"proxy,omitempty"`
	Slack       SlackConfig   `yaml:"slack,omitempty"`
	S3          S3Config      `yaml:"s3,omitempty"`
}

// ApplyDefaults fills unset fields with their default values.
func (c *ReportConfig) ApplyDefaults() {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.AuthScheme == "" {
		c.AuthScheme = DefaultAuthScheme
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
}

// Validate checks that the configuration has required fields for a report run.
func (c *ReportConfig) Validate() error {
	if strings.TrimSpace(c.APIToken) == "" {
		return ErrMissingToken
	}
	if c.APIURL == "" {
		return ErrMissingURL
	}
	parsed, err := url.Parse(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api url must use http or https scheme")
	}
	if parsed.Host == "" {
		return fmt.Errorf("api url must have a host")
	}
	return nil
}

// IsConfigured returns true if both the API URL and token are set.
func (c *ReportConfig) IsConfigured() bool {
	return c.APIURL != "" && c.APIToken != ""
}

// MaskedToken returns the API token with all but the last four characters hidden.
func (c *ReportConfig) MaskedToken() string {
	if c.APIToken == "" {
		return "(not set)"
	}
	if len(c.APIToken) <= 4 {
		return "****"
	}
	return "****" + c.APIToken[len(c.APIToken)-4:]
}

// Load reads the configuration from the given path.
// If the file does not exist, an empty config is returned.
func Load(path string) (*ReportConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ReportConfig{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg ReportConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// CheckPermissions returns ErrInsecurePermissions if the file at path may
// expose the API token to other users. A missing file is not an error.
func CheckPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat config file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Errorf("%w: %s has mode %04o, expected 0600", ErrInsecurePermissions, path, perm)
	}
	return nil
}

// Save writes the configuration to the given path, creating directories as needed.
func (c *ReportConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// The file holds the API token.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
