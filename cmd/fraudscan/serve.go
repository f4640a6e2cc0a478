package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/eargollo/fraudscan/internal/api"
	"github.com/eargollo/fraudscan/internal/scheduler"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection API and run scheduled scans",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	slog.Info("fraudscan starting",
		"version", version,
		"log_level", cfg.LogLevel,
		"http_addr", cfg.HTTPAddr,
		"db_path", cfg.DBPath,
		"models_dir", cfg.ModelsDir)

	// ── Database ───────────────────────────────────────────────────────────
	database, st, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	// Runs left open by a previous process can never finish.
	if err := st.MarkStaleRunsFailed(ctx); err != nil {
		slog.Warn("mark stale runs", "error", err)
	}

	// ── Detection ──────────────────────────────────────────────────────────
	mgr, reg, err := newDetector(ctx, st)
	if err != nil {
		return err
	}
	// Runs get their own context so every exit path stops them before the
	// database closes.
	runCtx, cancelRuns := context.WithCancel(ctx)
	defer drainRuns(cancelRuns, mgr)

	// ── Scheduler ──────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Schedule != "" {
		sched = scheduler.New()
		if err := sched.ScheduleDetection(runCtx, cfg.Schedule, mgr, cfg.DefaultModel); err != nil {
			slog.Warn("scheduled detection disabled", "error", err)
			sched = nil
		} else {
			sched.Start()
			defer sched.Stop()
		}
	}

	// ── HTTP server ────────────────────────────────────────────────────────
	srv := api.New(runCtx, cfg.HTTPAddr, mgr, st, reg, sched, cfg.DefaultModel, version)
	if err := srv.Run(ctx); err != nil {
		return err
	}
	slog.Info("fraudscan stopped")
	return nil
}

// drainRuns cancels in-flight runs and waits for them to return. The chunk
// in flight is not committed.
func drainRuns(cancel context.CancelFunc, runs interface{ Wait() }) {
	cancel()
	runs.Wait()
}
