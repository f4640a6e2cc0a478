package explain

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eargollo/fraudscan/internal/detect"
)

// Defaults for Service.
const (
	DefaultConcurrency = 16
	DefaultTimeout     = 25 * time.Second
)

// Service fans a batch of requests out to a Provider with bounded
// concurrency and a per-request timeout. It implements detect.Explainer.
type Service struct {
	provider    Provider
	concurrency int
	timeout     time.Duration
}

// NewService wraps p. Non-positive concurrency or timeout use the defaults.
func NewService(p Provider, concurrency int, timeout time.Duration) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{provider: p, concurrency: concurrency, timeout: timeout}
}

// ExplainBatch returns one entry per request in input order. Requests that
// fail, time out or panic yield "". All requests have finished when it
// returns.
func (s *Service) ExplainBatch(ctx context.Context, reqs []detect.ExplainRequest) []string {
	out := make([]string, len(reqs))
	var failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			text, err := s.explainOne(ctx, req)
			if err != nil {
				failed.Add(1)
				slog.Debug("explanation failed", "provider", s.provider.Name(), "amount", req.Amount, "error", err)
				return nil
			}
			out[i] = text
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		slog.Warn("explanations unavailable", "provider", s.provider.Name(), "failed", n, "requested", len(reqs))
	}
	return out
}

func (s *Service) explainOne(ctx context.Context, req detect.ExplainRequest) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.provider.Explain(ctx, req)
}
