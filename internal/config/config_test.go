package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReportConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ReportConfig
		wantErr error
	}{
		{
			name:    "empty config",
			cfg:     ReportConfig{},
			wantErr: ErrMissingToken,
		},
		{
			name: "whitespace token",
			cfg: ReportConfig{
				APIURL:   "https://api.example.com",
				APIToken: "   ",
			},
			wantErr: ErrMissingToken,
		},
		{
			name: "missing api_url",
			cfg: ReportConfig{
				APIToken: "nbp_secret",
			},
			wantErr: ErrMissingURL,
		},
		{
			name: "valid config",
			cfg: ReportConfig{
				APIURL:   "https://api.example.com/api",
				APIToken: "nbp_secret",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestReportConfig_ValidateURLScheme(t *testing.T) {
	cfg := ReportConfig{APIURL: "ftp://api.example.com", APIToken: "x"}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for ftp scheme")
	}

	cfg.APIURL = "https://"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for missing host")
	}
}

func TestReportConfig_ApplyDefaults(t *testing.T) {
	cfg := ReportConfig{Concurrency: -3}
	cfg.ApplyDefaults()

	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.AuthScheme != DefaultAuthScheme {
		t.Errorf("AuthScheme = %q, want %q", cfg.AuthScheme, DefaultAuthScheme)
	}
	if cfg.HTTPTimeout != DefaultHTTPTimeout {
		t.Errorf("HTTPTimeout = %v, want %v", cfg.HTTPTimeout, DefaultHTTPTimeout)
	}
	if cfg.OutputDir != "." {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, ".")
	}
	if cfg.Concurrency != 1 {
		t.Errorf("Concurrency = %d, want 1", cfg.Concurrency)
	}
}

func TestReportConfig_MaskedToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", "(not set)"},
		{"abc", "****"},
		{"nbp_1234567890", "****7890"},
	}

	for _, tt := range tests {
		cfg := ReportConfig{APIToken: tt.token}
		if got := cfg.MaskedToken(); got != tt.want {
			t.Errorf("MaskedToken(%q) = %q, want %q", tt.token, got, tt.want)
		}
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yml")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
	if cfg.APIURL != "" || cfg.APIToken != "" {
		t.Error("Load() expected empty config for non-existent file")
	}
}

func TestReportConfig_SaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yml")

	original := &ReportConfig{
		APIURL:      "https://api.example.com/api",
		APIToken:    "nbp_secret",
		HTTPTimeout: 45 * time.Second,
		PlanFields:  []string{"plan", "tier"},
		Slack:       SlackConfig{WebhookURL: "https://hooks.slack.com/services/x"},
		S3:          S3Config{Bucket: "reports", Prefix: "msp"},
	}

	if err := original.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if info.Mode().Perm()&0077 != 0 {
		t.Errorf("Config file has insecure permissions: %v", info.Mode())
	}
	if err := CheckPermissions(configPath); err != nil {
		t.Errorf("CheckPermissions() error: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loaded.APIURL != original.APIURL {
		t.Errorf("APIURL = %q, want %q", loaded.APIURL, original.APIURL)
	}
	if loaded.APIToken != original.APIToken {
		t.Errorf("APIToken = %q, want %q", loaded.APIToken, original.APIToken)
	}
	if loaded.HTTPTimeout != original.HTTPTimeout {
		t.Errorf("HTTPTimeout = %v, want %v", loaded.HTTPTimeout, original.HTTPTimeout)
	}
	if len(loaded.PlanFields) != 2 || loaded.PlanFields[1] != "tier" {
		t.Errorf("PlanFields = %v, want [plan tier]", loaded.PlanFields)
	}
	if !loaded.Slack.Enabled() {
		t.Error("Slack should be enabled after reload")
	}
	if loaded.S3.Bucket != "reports" || loaded.S3.Prefix != "msp" {
		t.Errorf("S3 = %+v, want bucket reports prefix msp", loaded.S3)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yml")

	if err := os.WriteFile(configPath, []byte("not: valid: yaml: {{"), 0600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestCheckPermissions_WorldReadable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(configPath, []byte("api_token: x\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if err := os.Chmod(configPath, 0644); err != nil {
		t.Fatalf("Chmod() error: %v", err)
	}

	err := CheckPermissions(configPath)
	if !errors.Is(err, ErrInsecurePermissions) {
		t.Errorf("CheckPermissions() error = %v, want ErrInsecurePermissions", err)
	}
}

func TestCheckPermissions_Missing(t *testing.T) {
	if err := CheckPermissions(filepath.Join(t.TempDir(), "absent.yml")); err != nil {
		t.Errorf("CheckPermissions() unexpected error for missing file: %v", err)
	}
}
