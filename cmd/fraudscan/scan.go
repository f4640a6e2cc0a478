package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/eargollo/fraudscan/internal/detect"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one detection scan in the foreground",
		RunE:  runScan,
	}
	cmd.Flags().String("model", "", "model to score with (default: default_model from config)")
	cmd.Flags().Bool("quiet", false, "do not draw a progress bar")
	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	model, _ := cmd.Flags().GetString("model")
	quiet, _ := cmd.Flags().GetBool("quiet")
	if model == "" {
		model = cfg.DefaultModel
	}

	database, st, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()
	if err := st.MarkStaleRunsFailed(ctx); err != nil {
		return err
	}

	mgr, _, err := newDetector(ctx, st)
	if err != nil {
		return err
	}

	started, err := mgr.Start(ctx, model)
	if errors.Is(err, detect.ErrNoWork) {
		fmt.Fprintln(cmd.OutOrStdout(), "No unprocessed transactions.")
		return nil
	}
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !quiet {
		bar = progressbar.NewOptions64(started.Total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Scoring transactions ("+model+")"),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		)
	}

	snap := waitForRun(mgr, 250*time.Millisecond, func(s detect.Snapshot) {
		if bar != nil {
			_ = bar.Set64(s.Processed)
		}
	})
	if bar != nil {
		_ = bar.Finish()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s %s: %d/%d processed, %d fraudulent\n",
		snap.RunID, snap.Status, snap.Processed, snap.Total, snap.Fraudulent)
	if snap.Status == detect.RunError {
		return fmt.Errorf("detection failed: %s", snap.Error)
	}
	return nil
}

// waitForRun polls the manager until the run is terminal, reporting each
// snapshot to onTick.
func waitForRun(mgr *detect.Manager, every time.Duration, onTick func(detect.Snapshot)) detect.Snapshot {
	done := make(chan struct{})
	go func() {
		mgr.Wait()
		close(done)
	}()

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			snap := mgr.Progress()
			onTick(snap)
			return snap
		case <-ticker.C:
			onTick(mgr.Progress())
		}
	}
}
