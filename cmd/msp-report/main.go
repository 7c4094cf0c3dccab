// Package main is the entrypoint for the msp-report CLI.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/MacJediWizard/msp-report/internal/config"
	"github.com/MacJediWizard/msp-report/internal/httpclient"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	httpclient.UserAgent = "msp-report/" + Version
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by all commands.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "msp-report",
		Short: "MSP billing reconciliation report",
		Long: `msp-report lists the tenants of an MSP account, counts each tenant's
active users, compares them with the billing usage reported upstream and
writes a text and a JSON report.

Set MSP_API_TOKEN (or run 'msp-report config set-token') before running.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.msp-report/config.yml)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&opts.logJSON, "log-json", false, "write logs as JSON lines")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(opts),
		newDaemonCmd(opts),
		newHistoryCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

// resolveConfigPath returns the --config value or the default path.
func (o *rootOptions) resolveConfigPath() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.DefaultConfigPath()
}

// loadConfig builds the effective configuration. Precedence from lowest to
// highest: defaults, config file, .env file, environment. Command flags are
// applied by the caller before validation.
func (o *rootOptions) loadConfig(stderr io.Writer) (*config.ReportConfig, error) {
	if _, err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, err
	}

	path, err := o.resolveConfigPath()
	if err != nil {
		return nil, err
	}
	if err := config.CheckPermissions(path); err != nil {
		fmt.Fprintf(stderr, "warning: %v\n", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

// newLogger creates the CLI logger writing to w.
func (o *rootOptions) newLogger(level string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if o.logJSON {
		logger = zerolog.New(w)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"})
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "msp-report %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Built:      %s\n", BuildDate)
			fmt.Fprintf(out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage msp-report configuration",
	}

	cmd.AddCommand(
		newConfigShowCmd(opts),
		newConfigSetServerCmd(opts),
		newConfigSetTokenCmd(opts),
		newConfigPathCmd(opts),
	)

	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			cfg.ApplyDefaults()
			path, _ := opts.resolveConfigPath()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config file:   %s\n", path)
			fmt.Fprintln(out)
			if !cfg.IsConfigured() {
				fmt.Fprintln(out, "API token is not set. Run 'msp-report config set-token' or set MSP_API_TOKEN.")
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "API URL:       %s\n", cfg.APIURL)
			fmt.Fprintf(out, "API Token:     %s\n", cfg.MaskedToken())
			fmt.Fprintf(out, "Auth Scheme:   %s\n", cfg.AuthScheme)
			fmt.Fprintf(out, "HTTP Timeout:  %s\n", cfg.HTTPTimeout)
			fmt.Fprintf(out, "Output Dir:    %s\n", cfg.OutputDir)
			fmt.Fprintf(out, "Concurrency:   %d\n", cfg.Concurrency)
			if len(cfg.PlanFields) > 0 {
				fmt.Fprintf(out, "Plan Fields:   %s\n", strings.Join(cfg.PlanFields, ", "))
			}
			if cfg.HistoryDB != "" {
				fmt.Fprintf(out, "History DB:    %s\n", cfg.HistoryDB)
			}
			if cfg.MetricsFile != "" {
				fmt.Fprintf(out, "Metrics File:  %s\n", cfg.MetricsFile)
			}
			if cfg.Schedule != "" {
				fmt.Fprintf(out, "Schedule:      %s\n", cfg.Schedule)
			}
			fmt.Fprintf(out, "Proxy:         %s\n", httpclient.ProxyInfo(&cfg.Proxy))
			fmt.Fprintf(out, "Slack:         %v\n", cfg.Slack.Enabled())
			if cfg.S3.Enabled() {
				fmt.Fprintf(out, "S3 Archive:    s3://%s/%s\n", cfg.S3.Bucket, cfg.S3.Prefix)
			}
			return nil
		},
	}
}

func newConfigSetServerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-server <url>",
		Short: "Set the upstream API base URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := url.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid server URL: %w", err)
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return fmt.Errorf("server URL must use http or https scheme")
			}
			if parsed.Host == "" {
				return fmt.Errorf("server URL must have a host")
			}

			path, cfg, err := opts.loadFileConfig()
			if err != nil {
				return err
			}
			cfg.APIURL = strings.TrimSuffix(args[0], "/")
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "API URL set to: %s\n", cfg.APIURL)
			return nil
		},
	}
}

func newConfigSetTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-token",
		Short: "Store the API token in the config file",
		Long:  "Reads the API token from standard input and stores it in the config file with 0600 permissions.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.ErrOrStderr(), "API token: ")
			reader := bufio.NewReader(cmd.InOrStdin())
			token, err := reader.ReadString('\n')
			if err != nil && token == "" {
				return fmt.Errorf("read token: %w", err)
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return config.ErrMissingToken
			}

			path, cfg, err := opts.loadFileConfig()
			if err != nil {
				return err
			}
			cfg.APIToken = token
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "API token saved to %s (%s)\n", path, cfg.MaskedToken())
			return nil
		},
	}
}

func newConfigPathCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.resolveConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// loadFileConfig loads only the config file, without environment overrides,
// so that saving it does not persist values taken from the environment.
func (o *rootOptions) loadFileConfig() (string, *config.ReportConfig, error) {
	path, err := o.resolveConfigPath()
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "", nil, fmt.Errorf("load config: %w", err)
	}
	return path, cfg, nil
}
