package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firechain/core/rewards"
)

// runServe closes an era on every tick, reloading the snapshot each time so
// the provider can drop in the next era's file. The prometheus endpoint is
// served when configured.
func runServe(env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(env.stderr)
	interval := fs.Duration("interval", 0, "Era interval (defaults to rewards.EraMinutes)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := env.load(); err != nil {
		return err
	}
	if *interval <= 0 {
		*interval = time.Duration(env.engineCfg.EraMinutes) * time.Minute
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	var server *http.Server
	if addr := env.cfg.Metrics.ListenAddress; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		server = &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			env.logger.Info("metrics listening", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}

	env.logger.Info("era loop started", "interval", interval.String())
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return shutdown(server)
		case err := <-errs:
			return err
		case <-ticker.C:
			if err := closeEra(ctx, env); err != nil {
				env.logger.Error("era close failed", "error", err)
			}
		}
	}
}

func closeEra(ctx context.Context, env *cliEnv) error {
	engine, err := env.currentEngine()
	if err != nil {
		return err
	}
	report, err := engine.OnEraEnd(ctx)
	if report != nil {
		logReport(env, report)
	}
	return err
}

func logReport(env *cliEnv, report *rewards.EraReport) {
	var paid, unpaid int
	for _, s := range report.Settlements {
		paid += len(s.Paid)
		unpaid += len(s.Unpaid)
	}
	attrs := []any{"settled", len(report.Settlements), "payouts", paid, "unpaid", unpaid, "dropped", len(report.Dropped)}
	if report.Summary != nil {
		attrs = append(attrs, "era", report.Summary.Era, "credited", report.Summary.Credited().Dec())
	}
	env.logger.Info("era closed", attrs...)
}

func shutdown(server *http.Server) error {
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		_ = server.Close()
		return err
	}
	return nil
}
