// Package classifier holds the trained fraud models used during detection.
//
// All models registered in a Registry share one feature list, fixed by the
// first model registered. Rows are projected onto that list before scoring:
// missing features read as 0 and unknown features are dropped.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// LabelColumn is the training label. It is never a model input.
const LabelColumn = "is_fraud"

var (
	// ErrModelNotTrained is returned when predicting with an unregistered model.
	ErrModelNotTrained = errors.New("model not trained")
	// ErrFeatureMismatch is returned when a model's feature list differs from
	// the one already fixed for the registry.
	ErrFeatureMismatch = errors.New("feature list mismatch")
)

// Model labels one aligned feature vector. 1 means fraud, 0 legitimate.
type Model interface {
	Kind() Kind
	// Width is the number of leading features the model reads.
	Width() int
	Predict(x []float64) int
}

// Registry is a named set of models sharing a feature list. It is safe for
// concurrent use and implements detect.Classifier.
type Registry struct {
	mu       sync.RWMutex
	features []string
	models   map[string]Model
}

// NewRegistry returns an empty registry with no feature list fixed yet.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]Model)}
}

// Register adds or replaces the model called name. features is the ordered
// input list the model was trained on; the label column is ignored.
func (r *Registry) Register(name string, features []string, m Model) error {
	if name == "" {
		return errors.New("register model: empty name")
	}
	features = stripLabel(features)
	if m.Width() > len(features) {
		return fmt.Errorf("register model %q: reads %d features, %d declared", name, m.Width(), len(features))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.features == nil {
		r.features = features
	} else if !slices.Equal(r.features, features) {
		return fmt.Errorf("%w: model %q has %v, registry has %v", ErrFeatureMismatch, name, features, r.features)
	}
	r.models[name] = m
	return nil
}

// Has reports whether a model called name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[name]
	return ok
}

// ModelInfo describes a registered model.
type ModelInfo struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Models lists registered models sorted by name.
func (r *Registry) Models() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelInfo, 0, len(r.models))
	for name, m := range r.models {
		out = append(out, ModelInfo{Name: name, Kind: m.Kind()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Features returns a copy of the fixed feature list, nil if no model has
// been registered.
func (r *Registry) Features() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.features)
}

// predictCheckEvery is how many rows are scored between context checks.
const predictCheckEvery = 4096

// Predict labels every row with the named model.
func (r *Registry) Predict(ctx context.Context, name string, rows []map[string]float64) ([]int, error) {
	r.mu.RLock()
	m, ok := r.models[name]
	features := r.features
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotTrained, name)
	}

	labels := make([]int, len(rows))
	x := make([]float64, len(features))
	for i, row := range rows {
		if i%predictCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		alignInto(x, features, row)
		labels[i] = m.Predict(x)
	}
	return labels, nil
}

// align projects row onto features in order. Missing features are 0.
func align(features []string, row map[string]float64) []float64 {
	x := make([]float64, len(features))
	alignInto(x, features, row)
	return x
}

func alignInto(x []float64, features []string, row map[string]float64) {
	for i, f := range features {
		x[i] = row[f]
	}
}

func stripLabel(features []string) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		if f != LabelColumn {
			out = append(out, f)
		}
	}
	return out
}
