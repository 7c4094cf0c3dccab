package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names read by ApplyEnv.
const (
	EnvAPIToken        = "MSP_API_TOKEN"
	EnvAPIURL          = "MSP_API_URL"
	EnvAuthScheme      = "MSP_AUTH_SCHEME"
	EnvHTTPTimeout     = "MSP_HTTP_TIMEOUT"
	EnvOutputDir       = "MSP_OUTPUT_DIR"
	EnvLogLevel        = "MSP_LOG_LEVEL"
	EnvConcurrency     = "MSP_CONCURRENCY"
	EnvPlanFields      = "MSP_PLAN_FIELDS"
	EnvHistoryDB       = "MSP_HISTORY_DB"
	EnvMetricsFile     = "MSP_METRICS_FILE"
	EnvSchedule        = "MSP_SCHEDULE"
	EnvSlackWebhookURL = "MSP_SLACK_WEBHOOK_URL"
	EnvS3Bucket        = "MSP_S3_BUCKET"
	EnvS3Prefix        = "MSP_S3_PREFIX"
	EnvS3Region        = "MSP_S3_REGION"
	EnvS3Endpoint      = "MSP_S3_ENDPOINT"
	EnvS3PathStyle     = "MSP_S3_PATH_STYLE"
)

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables that are already set are not overridden. A missing file is not
// an error; the returned bool reports whether a file was read.
func LoadDotEnv(path string) (bool, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("load env file %s: %w", path, err)
	}
	return true, nil
}

// ApplyEnv overrides configuration values with any set environment variables.
func (c *ReportConfig) ApplyEnv() {
	setString(&c.APIToken, EnvAPIToken)
	setString(&c.APIURL, EnvAPIURL)
	setString(&c.AuthScheme, EnvAuthScheme)
	setString(&c.OutputDir, EnvOutputDir)
	setString(&c.LogLevel, EnvLogLevel)
	setString(&c.HistoryDB, EnvHistoryDB)
	setString(&c.MetricsFile, EnvMetricsFile)
	setString(&c.Schedule, EnvSchedule)
	setString(&c.Slack.WebhookURL, EnvSlackWebhookURL)
	setString(&c.S3.Bucket, EnvS3Bucket)
	setString(&c.S3.Prefix, EnvS3Prefix)
	setString(&c.S3.Region, EnvS3Region)
	setString(&c.S3.Endpoint, EnvS3Endpoint)
	c.S3.UsePathStyle = getEnvBool(EnvS3PathStyle, c.S3.UsePathStyle)

	c.Concurrency = getEnvInt(EnvConcurrency, c.Concurrency)
	c.HTTPTimeout = getEnvDuration(EnvHTTPTimeout, c.HTTPTimeout)

	if fields := os.Getenv(EnvPlanFields); fields != "" {
		c.PlanFields = splitList(fields)
	}

	// Standard proxy variables, upper case first.
	setString(&c.Proxy.HTTPProxy, "HTTP_PROXY", "http_proxy")
	setString(&c.Proxy.HTTPSProxy, "HTTPS_PROXY", "https_proxy")
	setString(&c.Proxy.NoProxy, "NO_PROXY", "no_proxy")
	if all := firstEnv("ALL_PROXY", "all_proxy"); strings.HasPrefix(all, "socks5") {
		c.Proxy.SOCKS5Proxy = all
	}
}

func setString(dst *string, keys ...string) {
	if v := firstEnv(keys...); v != "" {
		*dst = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvBool reads a boolean from an environment variable, returning the default if unset or invalid.
func getEnvBool(key string, defaultVal bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

// getEnvInt reads an integer from an environment variable, returning the default if unset or invalid.
func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
