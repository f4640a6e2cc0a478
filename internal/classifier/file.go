package classifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind identifies a model family in a model file.
type Kind string

const (
	KindLogistic        Kind = "logistic"
	KindDecisionTree    Kind = "decision_tree"
	KindRandomForest    Kind = "random_forest"
	KindIsolationForest Kind = "isolation_forest"
)

// File is the on-disk form of a trained model.
type File struct {
	Name     string          `json:"name"`
	Kind     Kind            `json:"kind"`
	Features []string        `json:"features"`
	Params   json.RawMessage `json:"params"`
}

// Decode builds the model described by f.
func (f File) Decode() (Model, error) {
	var (
		m        Model
		validate func() error
	)
	switch f.Kind {
	case KindLogistic:
		v := &Logistic{}
		m, validate = v, v.validate
	case KindDecisionTree:
		v := &Tree{}
		m, validate = v, v.validate
	case KindRandomForest:
		v := &Forest{}
		m, validate = v, v.validate
	case KindIsolationForest:
		v := &IsolationForest{}
		m, validate = v, v.validate
	default:
		return nil, fmt.Errorf("unknown model kind %q", f.Kind)
	}
	if len(f.Params) == 0 {
		return nil, fmt.Errorf("%s model has no params", f.Kind)
	}
	if err := json.Unmarshal(f.Params, m); err != nil {
		return nil, fmt.Errorf("decode %s params: %w", f.Kind, err)
	}
	if err := validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// ReadFile parses a model file.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

// LoadDir registers every *.json model in dir, in file name order. Files that
// cannot be read, decoded or registered are logged and skipped. A missing
// directory is created and yields an empty registry.
func LoadDir(dir string) (*Registry, error) {
	reg := NewRegistry()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		f, err := ReadFile(path)
		if err != nil {
			slog.Warn("skipping model file", "path", path, "error", err)
			continue
		}
		m, err := f.Decode()
		if err != nil {
			slog.Warn("skipping model file", "path", path, "model", f.Name, "error", err)
			continue
		}
		if err := reg.Register(f.Name, f.Features, m); err != nil {
			slog.Warn("skipping model file", "path", path, "model", f.Name, "error", err)
			continue
		}
		slog.Info("model loaded", "model", f.Name, "kind", f.Kind, "features", len(f.Features))
	}
	return reg, nil
}

// Save writes m to dir/<name>.json, replacing any previous file.
func Save(dir, name string, features []string, m Model) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("save model: invalid name %q", name)
	}
	params, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s params: %w", m.Kind(), err)
	}
	data, err := json.MarshalIndent(File{
		Name:     name,
		Kind:     m.Kind(),
		Features: features,
		Params:   params,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model file: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("save model %q: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save model %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save model %q: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name+".json")); err != nil {
		return fmt.Errorf("save model %q: %w", name, err)
	}
	return nil
}

// Install validates the model file at src against the models already in dir
// and saves it there as name. An empty name keeps the name in the file.
// Models whose feature list differs from the installed ones are refused
// with ErrFeatureMismatch.
func Install(dir, src, name string) (ModelInfo, error) {
	f, err := ReadFile(src)
	if err != nil {
		return ModelInfo{}, err
	}
	if name == "" {
		name = f.Name
	}
	m, err := f.Decode()
	if err != nil {
		return ModelInfo{}, fmt.Errorf("model %q: %w", name, err)
	}
	reg, err := LoadDir(dir)
	if err != nil {
		return ModelInfo{}, err
	}
	if err := reg.Register(name, f.Features, m); err != nil {
		return ModelInfo{}, err
	}
	if err := Save(dir, name, stripLabel(f.Features), m); err != nil {
		return ModelInfo{}, err
	}
	return ModelInfo{Name: name, Kind: m.Kind()}, nil
}
