package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("%q: got %v, want %v", in, got, want)
		}
	}
}

func TestNewLogHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newLogHandler(&buf, "json", slog.LevelInfo)).Info("detection started", "total", 3)
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"total":3`) {
		t.Errorf("json output: %s", buf.String())
	}

	buf.Reset()
	slog.New(newLogHandler(&buf, "text", slog.LevelInfo)).Info("detection started", "total", 3)
	if !strings.Contains(buf.String(), "total=3") {
		t.Errorf("text output: %s", buf.String())
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"serve", "scan", "ingest", "migrate", "models"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

type orderedWaiter struct {
	calls *[]string
}

func (w orderedWaiter) Wait() { *w.calls = append(*w.calls, "wait") }

func TestDrainRunsCancelsBeforeWaiting(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancelAndRecord := func() {
		cancel()
		calls = append(calls, "cancel")
	}

	// Same shape as a serve whose HTTP server fails to bind.
	func() error {
		defer drainRuns(cancelAndRecord, orderedWaiter{calls: &calls})
		return context.DeadlineExceeded
	}()

	if ctx.Err() == nil {
		t.Error("run context not cancelled")
	}
	if strings.Join(calls, ",") != "cancel,wait" {
		t.Errorf("calls = %v, want cancel then wait", calls)
	}
}

func TestModelsAddAndList(t *testing.T) {
	modelsDir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("models_dir: "+modelsDir+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "model.json")
	body := `{"name":"LogisticRegression","kind":"logistic","features":["amount","hour"],"params":{"weights":[0.01,0],"intercept":-50}}`
	if err := os.WriteFile(src, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "models", "add", src, "--name", "LR"})
	if err := root.Execute(); err != nil {
		t.Fatalf("models add: %v", err)
	}
	if _, err := os.Stat(filepath.Join(modelsDir, "LR.json")); err != nil {
		t.Fatalf("model not installed: %v", err)
	}

	out.Reset()
	root = rootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "models", "list"})
	if err := root.Execute(); err != nil {
		t.Fatalf("models list: %v", err)
	}
	if !strings.Contains(out.String(), "LR") || !strings.Contains(out.String(), "features: amount, hour") {
		t.Errorf("list output: %s", out.String())
	}
}
