package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/eargollo/fraudscan/internal/classifier"
	"github.com/eargollo/fraudscan/internal/db"
	"github.com/eargollo/fraudscan/internal/detect"
	"github.com/eargollo/fraudscan/internal/explain"
	"github.com/eargollo/fraudscan/internal/store"
)

// openStore opens the database and brings the schema up to date.
func openStore() (*sql.DB, *store.Store, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.RunMigrations(database); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	return database, store.New(database), nil
}

// newDetector loads the models and explanation provider and returns a
// detection manager over st.
func newDetector(ctx context.Context, st *store.Store) (*detect.Manager, *classifier.Registry, error) {
	reg, err := classifier.LoadDir(cfg.ModelsDir)
	if err != nil {
		return nil, nil, err
	}
	if len(reg.Models()) == 0 {
		slog.Warn("no trained models found", "models_dir", cfg.ModelsDir)
	}

	provider, err := explain.NewProvider(ctx, explain.Options{
		Provider: cfg.Explain.Provider,
		Model:    cfg.Explain.Model,
		APIKey:   cfg.Explain.APIKey(),
		BaseURL:  cfg.Explain.BaseURL,
	})
	if err != nil {
		slog.Warn("explanation provider unavailable, using template", "provider", cfg.Explain.Provider, "error", err)
		provider = explain.Template{}
	}
	slog.Info("explanation provider ready", "provider", provider.Name())
	svc := explain.NewService(provider, cfg.Explain.Concurrency, cfg.Explain.Timeout)

	mgr := detect.NewManager(st, reg, svc, st, detect.Config{ChunkSize: cfg.ChunkSize})
	return mgr, reg, nil
}
