package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/MacJediWizard/msp-report/internal/config"
	"github.com/MacJediWizard/msp-report/internal/history"
	"github.com/MacJediWizard/msp-report/internal/reconcile"
	"github.com/MacJediWizard/msp-report/internal/reports"
	"github.com/MacJediWizard/msp-report/internal/upstream"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// runFlags are the flags shared by run and daemon.
type runFlags struct {
	outputDir   string
	concurrency int
	metricsFile string
	historyDB   string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "directory for the report files (default current directory)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "number of tenants processed at once (default 1)")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.Flags().StringVar(&f.historyDB, "history-db", "", "run history database (default ~/.msp-report/history.db)")
}

func (f *runFlags) apply(cfg *config.ReportConfig) {
	if f.outputDir != "" {
		cfg.OutputDir = f.outputDir
	}
	if f.concurrency > 0 {
		cfg.Concurrency = f.concurrency
	}
	if f.metricsFile != "" {
		cfg.MetricsFile = f.metricsFile
	}
	if f.historyDB != "" {
		cfg.HistoryDB = f.historyDB
	}
}

// prepare loads, overrides and validates the configuration for a report run.
func prepare(cmd *cobra.Command, opts *rootOptions, flags *runFlags) (*config.ReportConfig, error) {
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	flags.apply(cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate the billing reconciliation report once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := prepare(cmd, opts, flags)
			if err != nil {
				return err
			}
			logger := opts.newLogger(cfg.LogLevel, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := newPipeline(cfg, cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			if err := p.Run(ctx); err != nil {
				if upstream.IsFatal(err) || errors.Is(err, reconcile.ErrNoTenants) {
					logger.Error().Err(err).Str("api_url", cfg.APIURL).Msg("tenant listing failed, no report written")
				} else {
					logger.Error().Err(err).Msg("report run failed")
				}
				return err
			}
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func newDaemonCmd(opts *rootOptions) *cobra.Command {
	var (
		flags    = &runFlags{}
		schedule string
		runNow   bool
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Generate reports on a cron schedule",
		Long: `Runs the report on a cron schedule until interrupted.

The schedule accepts five-field cron expressions, an optional leading
seconds field, and descriptors such as @daily or @every 6h.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := prepare(cmd, opts, flags)
			if err != nil {
				return err
			}
			if schedule != "" {
				cfg.Schedule = schedule
			}
			if cfg.Schedule == "" {
				return errors.New("a schedule is required (--schedule or MSP_SCHEDULE)")
			}
			logger := opts.newLogger(cfg.LogLevel, cmd.ErrOrStderr())

			p, err := newPipeline(cfg, cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			scheduler, err := reports.NewScheduler(cfg.Schedule, p.Run, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := scheduler.Start(ctx); err != nil {
				return err
			}
			logger.Info().
				Str("schedule", cfg.Schedule).
				Time("next_run", scheduler.Next()).
				Msg("daemon started")

			if runNow {
				go scheduler.RunNow(ctx)
			}

			<-ctx.Done()
			logger.Info().Msg("shutting down, waiting for running report")
			<-scheduler.Stop().Done()
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression, e.g. \"0 6 * * 1\"")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "also run once immediately at startup")

	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit     int
		historyDB string
	)

	openStore := func(cmd *cobra.Command) (*history.Store, error) {
		cfg, err := opts.loadConfig(cmd.ErrOrStderr())
		if err != nil {
			return nil, err
		}
		if historyDB != "" {
			cfg.HistoryDB = historyDB
		}
		path, err := historyPath(cfg)
		if err != nil {
			return nil, err
		}
		return history.NewStore(path, opts.newLogger(cfg.LogLevel, cmd.ErrOrStderr()))
	}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent report runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tFINISHED\tTENANTS\tREGISTERED\tBILLABLE\tANOMALIES\tWARNINGS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
					r.ID, r.FinishedAt.Local().Format(time.DateTime), r.TenantCount,
					r.TotalRegistered, r.TotalBillable, r.AnomalyCount, r.DegradedCount)
			}
			return w.Flush()
		},
	}
	cmd.PersistentFlags().StringVar(&historyDB, "history-db", "", "run history database (default ~/.msp-report/history.db)")
	cmd.Flags().IntVar(&limit, "limit", history.DefaultListLimit, "maximum number of runs to list")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the per-tenant results of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:       %s\n", run.ID)
			fmt.Fprintf(out, "Started:   %s\n", run.StartedAt.Local().Format(time.DateTime))
			fmt.Fprintf(out, "Finished:  %s\n", run.FinishedAt.Local().Format(time.DateTime))
			if run.TextPath != "" {
				fmt.Fprintf(out, "Report:    %s\n", run.TextPath)
			}
			fmt.Fprintln(out)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TENANT ID\tNAME\tPLAN\tREGISTERED\tBILLABLE\tDIFFERENCE")
			for _, t := range run.Tenants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n", t.TenantID, t.Name, t.Plan, t.Registered, t.Billable, t.Difference)
			}
			return w.Flush()
		},
	})

	return cmd
}
