package cmd

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restclient/packages/bench"
	"github.com/abdul-hamid-achik/restclient/packages/http"
	"github.com/abdul-hamid-achik/restclient/packages/metrics"
)

func newBenchCmd(a *app) *cobra.Command {
	var (
		flags       requestFlags
		cfg         = bench.DefaultConfig()
		threshold   string
		metricsAddr string
		jsonOutput  bool
		noProgress  bool
	)

	cmd := &cobra.Command{
		Use:   "bench <method> <path>",
		Short: "Send one request many times and summarize latencies",
		Long: `Send one request many times and summarize latencies.

Requests are never retried; every failure counts against the error rate.

Examples:
  restclient bench get /health -n 1000 --rate 200 --concurrency 20
  restclient bench post /items -p name=x -n 500 --threshold "p95<200ms,errors<1%"
  restclient bench get /health -n 100000 --metrics-addr :9090`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := a.settings(cmd)
			if err != nil {
				return err
			}

			if threshold != "" {
				cfg.Thresholds, err = bench.ParseThresholds(threshold)
				if err != nil {
					return usageError(err)
				}
			}
			if err := cfg.Validate(); err != nil {
				return usageError(err)
			}

			req, err := flags.build(strings.ToUpper(args[0]), args[1])
			if err != nil {
				return err
			}

			var extra []http.ClientOption
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				extra = append(extra, http.WithObserver(metrics.NewPrometheusObserver(reg)))

				srv := metrics.NewServer(metricsAddr, reg)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
						fmt.Fprintf(a.stderr, "metrics server: %v\n", err)
					}
				}()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}

			client, err := a.newClient(settings, extra...)
			if err != nil {
				return err
			}

			reporter := bench.NewReporter(
				bench.WithWriter(a.stdout),
				bench.WithNoColor(settings.GetNoColor()),
				bench.WithVerbose(settings.GetVerbose()),
			)
			var opts []bench.RunnerOption
			if !jsonOutput && settings.Output != "json" {
				opts = append(opts, bench.WithReporter(reporter))
			}
			if !noProgress {
				progress := bench.NewReporter(bench.WithWriter(a.stderr))
				opts = append(opts, bench.WithProgress(progress.Progress))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := bench.NewRunner(client, cfg, opts...).Run(ctx, req)
			if summary == nil {
				return err
			}
			if jsonOutput || settings.Output == "json" {
				if err := reporter.JSONSummary(summary); err != nil {
					return err
				}
			}

			// Reaching --duration ends a run normally.
			if errors.Is(err, context.Canceled) {
				return withExitCode(ExitRequestFailure, fmt.Errorf("bench interrupted: %w", err))
			}
			if !summary.Passed() {
				return withExitCode(ExitRequestFailure, errors.New("some thresholds failed"))
			}
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().IntVarP(&cfg.Requests, "requests", "n", cfg.Requests, "Total requests to send")
	cmd.Flags().Float64Var(&cfg.Rate, "rate", 0, "Target requests per second (0 = unpaced)")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Maximum requests in flight")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 0, "Stop starting requests after this long (0 = no limit)")
	cmd.Flags().StringVar(&threshold, "threshold", "", "Pass/fail thresholds (e.g., \"p95<200ms,errors<0.1%\")")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the summary as JSON")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress line")

	return cmd
}
