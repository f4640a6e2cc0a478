package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eargollo/fraudscan/internal/config"
)

// Injected at build time via -ldflags; defaults to "dev".
var version = "dev"

var (
	cfgFile string
	cfg     *config.Config
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fraudscan",
		Short:         "Batch fraud detection over stored transactions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to config file")

	root.AddCommand(serveCmd())
	root.AddCommand(scanCmd())
	root.AddCommand(ingestCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(modelsCmd())
	return root
}

func main() {
	// ── Logging (initial, overridden once config is loaded) ──────────────────
	slog.SetDefault(slog.New(newLogHandler(os.Stderr, "text", slog.LevelInfo)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	slog.SetDefault(slog.New(newLogHandler(os.Stderr, cfg.LogFormat, parseLogLevel(cfg.LogLevel))))
	return nil
}

// newLogHandler returns a JSON handler for format "json" and a text handler
// otherwise.
func newLogHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLogLevel converts a config string ("debug", "info", "warn", "error")
// to its slog.Level equivalent. Unknown values default to Info.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
