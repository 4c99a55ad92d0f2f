package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/kindauth/config"
	"github.com/MrEthical07/kindauth/internal/logging"
	promexport "github.com/MrEthical07/kindauth/metrics/export/prometheus"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	var (
		once        bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired blacklist entries and spent challenges",
		Long: `Run the sweeper against the configured backend. With --once a single
pass is made and the counts are printed; otherwise the sweeper runs every
KINDAUTH_SWEEP_INTERVAL until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := config.Load()
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				env.MetricsAddr = metricsAddr
			}
			logger := logging.Setup(env.LogOptions())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			engine, closeEngine, err := openEngine(ctx, env, logger)
			if err != nil {
				return err
			}
			defer closeEngine()

			if once {
				res, err := engine.Sweep(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("swept %d tokens and %d challenges older than %s\n",
					res.Tokens, res.Challenges, res.Cutoff.Format(time.RFC3339))
				return nil
			}

			if env.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promexport.Handler(engine))
				srv := &http.Server{Addr: env.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server stopped", "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			if _, err := engine.Sweep(ctx); err != nil {
				logger.Warn("initial sweep failed", "error", err)
			}
			if err := engine.StartSweeper(ctx); err != nil {
				return err
			}
			logger.Info("sweeper running", "interval", env.SweepInterval.String())
			<-ctx.Done()
			logger.Info("sweeper stopping")
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}
