package detect

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var errDiskFull = errors.New("disk full")

// memStore is an in-memory Store keyed by id.
type memStore struct {
	mu   sync.Mutex
	rows map[int64]Transaction

	fetchSizes   []int
	updateCalls  int
	failUpdateAt int // 1-based BulkUpdate call that fails; 0 never fails

	// onFetch runs (without the lock) before every FetchChunk.
	onFetch func(call int)
	fetches int
}

func newMemStore(amounts ...float64) *memStore {
	s := &memStore{rows: make(map[int64]Transaction, len(amounts))}
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, a := range amounts {
		id := int64(i + 1)
		s.rows[id] = Transaction{
			ID:        id,
			Amount:    a,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Status:    StatusUnknown,
		}
	}
	return s
}

// newUniformStore returns a store with n rows of the same amount.
func newUniformStore(n int, amount float64) *memStore {
	amounts := make([]float64, n)
	for i := range amounts {
		amounts[i] = amount
	}
	return newMemStore(amounts...)
}

func (s *memStore) CountEligible(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.rows {
		if r.Status == StatusUnknown {
			n++
		}
	}
	return n, nil
}

func (s *memStore) FetchChunk(ctx context.Context, limit int) ([]Transaction, error) {
	s.mu.Lock()
	s.fetches++
	call := s.fetches
	hook := s.onFetch
	s.mu.Unlock()
	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Transaction
	for _, r := range s.rows {
		if r.Status == StatusUnknown {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	s.fetchSizes = append(s.fetchSizes, len(out))
	return out, nil
}

func (s *memStore) BulkUpdate(ctx context.Context, rows []Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.failUpdateAt != 0 && s.updateCalls == s.failUpdateAt {
		return errDiskFull
	}
	for _, r := range rows {
		cur := s.rows[r.ID]
		cur.Status = r.Status
		cur.Explanation = r.Explanation
		s.rows[r.ID] = cur
	}
	return nil
}

func (s *memStore) get(id int64) Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

func (s *memStore) setStatus(id int64, st FraudStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[id]
	r.Status = st
	s.rows[id] = r
}

// fakeClassifier labels rows with a per-model function.
type fakeClassifier struct {
	models map[string]func(row map[string]float64) int
	err    error
	short  bool // return one label fewer than asked
}

func classifierFlagging(model string, fn func(row map[string]float64) int) *fakeClassifier {
	return &fakeClassifier{models: map[string]func(map[string]float64) int{model: fn}}
}

func (c *fakeClassifier) Has(model string) bool {
	_, ok := c.models[model]
	return ok
}

func (c *fakeClassifier) Predict(ctx context.Context, model string, rows []map[string]float64) ([]int, error) {
	if c.err != nil {
		return nil, c.err
	}
	fn, ok := c.models[model]
	if !ok {
		return nil, ErrModelNotTrained
	}
	labels := make([]int, len(rows))
	for i, r := range rows {
		labels[i] = fn(r)
	}
	if c.short && len(labels) > 0 {
		labels = labels[:len(labels)-1]
	}
	return labels, nil
}

func flagAll(map[string]float64) int  { return 1 }
func flagNone(map[string]float64) int { return 0 }

// explainerFunc adapts a function to Explainer.
type explainerFunc func(ctx context.Context, reqs []ExplainRequest) []string

func (f explainerFunc) ExplainBatch(ctx context.Context, reqs []ExplainRequest) []string {
	return f(ctx, reqs)
}

func explainEach(fn func(ExplainRequest) string) Explainer {
	return explainerFunc(func(_ context.Context, reqs []ExplainRequest) []string {
		out := make([]string, len(reqs))
		for i, r := range reqs {
			out[i] = fn(r)
		}
		return out
	})
}

// memRecorder captures run history writes.
type memRecorder struct {
	mu         sync.Mutex
	inserts    []Snapshot
	updates    []Snapshot
	heartbeats int

	// othersActive makes InsertRun report a run owned by another process.
	othersActive bool
}

func (r *memRecorder) InsertRun(ctx context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.othersActive {
		return fmt.Errorf("%w: another process owns an active run", ErrBusy)
	}
	r.inserts = append(r.inserts, snap)
	return nil
}

func (r *memRecorder) Heartbeat(ctx context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats++
	return nil
}

func (r *memRecorder) heartbeatCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heartbeats
}

func (r *memRecorder) UpdateRun(ctx context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, snap)
	return nil
}

func (r *memRecorder) updatesCopy() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.updates...)
}
