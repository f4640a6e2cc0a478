package classifier

import (
	"errors"
	"fmt"
	"math"
)

const eulerGamma = 0.5772156649015329

// IsolationForest flags anomalies: rows that random splits isolate in fewer
// steps than average. Each leaf stores how many training samples reached it.
type IsolationForest struct {
	Trees      []IsolationTree `json:"trees"`
	SampleSize int             `json:"sample_size"`
	// Threshold on the anomaly score; 0 means 0.5.
	Threshold float64 `json:"threshold,omitempty"`
}

// IsolationTree is one isolation tree. Leaf nodes use Node.Label as the
// number of training samples that ended there.
type IsolationTree struct {
	Nodes []Node `json:"nodes"`
}

func (f *IsolationForest) Kind() Kind { return KindIsolationForest }

func (f *IsolationForest) Width() int {
	w := 0
	for i := range f.Trees {
		w = max(w, nodesWidth(f.Trees[i].Nodes))
	}
	return w
}

// Score returns the anomaly score in (0, 1]; higher is more anomalous.
func (f *IsolationForest) Score(x []float64) float64 {
	var total float64
	for i := range f.Trees {
		total += f.Trees[i].pathLength(x)
	}
	mean := total / float64(len(f.Trees))
	return math.Pow(2, -mean/averagePathLength(f.SampleSize))
}

func (f *IsolationForest) Predict(x []float64) int {
	th := f.Threshold
	if th == 0 {
		th = 0.5
	}
	if f.Score(x) > th {
		return 1
	}
	return 0
}

func (t *IsolationTree) pathLength(x []float64) float64 {
	i, depth := 0, 0
	for {
		n := t.Nodes[i]
		if n.leaf() {
			return float64(depth) + averagePathLength(n.Label)
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the mean path length of an unsuccessful search
// in a binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

func (f *IsolationForest) validate() error {
	if len(f.Trees) == 0 {
		return errors.New("isolation forest: no trees")
	}
	if f.SampleSize < 2 {
		return errors.New("isolation forest: sample_size must be at least 2")
	}
	for i := range f.Trees {
		err := validateNodes(f.Trees[i].Nodes, func(n Node) error {
			if n.leaf() && n.Label < 0 {
				return errors.New("negative leaf size")
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
