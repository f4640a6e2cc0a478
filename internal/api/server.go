// Package api serves the detection job control surface over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eargollo/fraudscan/internal/api/handlers"
	"github.com/eargollo/fraudscan/internal/classifier"
	"github.com/eargollo/fraudscan/internal/detect"
	"github.com/eargollo/fraudscan/internal/scheduler"
	"github.com/eargollo/fraudscan/internal/store"
)

// Server holds the HTTP server and all handler dependencies.
type Server struct {
	addr    string
	handler http.Handler
	srv     *http.Server
}

// New wires all routes and returns a Server ready to Run. runCtx scopes
// detection runs started over HTTP. sched may be nil.
func New(
	runCtx context.Context,
	addr string,
	mgr *detect.Manager,
	st *store.Store,
	reg *classifier.Registry,
	sched *scheduler.Scheduler,
	defaultModel string,
	version string,
) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	statusH := &handlers.StatusHandler{Manager: mgr, Version: version}
	if sched != nil {
		statusH.Sched = sched
	}
	detectionH := &handlers.DetectionHandler{
		Manager:      mgr,
		History:      st,
		DefaultModel: defaultModel,
		RunCtx:       runCtx,
	}
	modelsH := &handlers.ModelsHandler{Models: reg}
	summaryH := &handlers.SummaryHandler{Store: st}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", statusH.ServeHTTP)

		r.Post("/detection/start", detectionH.Start)
		r.Get("/detection/progress", detectionH.Progress)
		r.Get("/detection/runs", detectionH.Runs)

		r.Get("/models", modelsH.ServeHTTP)
		r.Get("/summary", summaryH.ServeHTTP)
	})

	return &Server{
		addr:    addr,
		handler: r,
		srv:     &http.Server{Addr: addr, Handler: r},
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		return s.srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
