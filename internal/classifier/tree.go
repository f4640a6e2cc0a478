package classifier

import (
	"errors"
	"fmt"
)

// Node is one node of a binary decision tree stored as a flat array.
// Left is -1 for a leaf. Samples with x[Feature] <= Threshold go left.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	// Label is the predicted class at a leaf.
	Label int `json:"label"`
}

func (n Node) leaf() bool { return n.Left < 0 }

// Tree is a decision tree classifier rooted at Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) Kind() Kind { return KindDecisionTree }

func (t *Tree) Width() int { return nodesWidth(t.Nodes) }

func (t *Tree) Predict(x []float64) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.leaf() {
			return n.Label
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) validate() error {
	return validateNodes(t.Nodes, func(n Node) error {
		if n.leaf() && n.Label != 0 && n.Label != 1 {
			return fmt.Errorf("leaf label %d is not 0 or 1", n.Label)
		}
		return nil
	})
}

// Forest is a random forest: the majority label of its trees.
// Ties go to legitimate.
type Forest struct {
	Trees []Tree `json:"trees"`
}

func (f *Forest) Kind() Kind { return KindRandomForest }

func (f *Forest) Width() int {
	w := 0
	for i := range f.Trees {
		w = max(w, f.Trees[i].Width())
	}
	return w
}

func (f *Forest) Predict(x []float64) int {
	votes := 0
	for i := range f.Trees {
		votes += f.Trees[i].Predict(x)
	}
	if 2*votes > len(f.Trees) {
		return 1
	}
	return 0
}

func (f *Forest) validate() error {
	if len(f.Trees) == 0 {
		return errors.New("random forest: no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func nodesWidth(nodes []Node) int {
	w := 0
	for _, n := range nodes {
		if !n.leaf() {
			w = max(w, n.Feature+1)
		}
	}
	return w
}

// validateNodes checks that child links point forward inside the array so
// traversal always terminates, then runs check on every node.
func validateNodes(nodes []Node, check func(Node) error) error {
	if len(nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, n := range nodes {
		if !n.leaf() {
			if n.Feature < 0 {
				return fmt.Errorf("node %d: negative feature index", i)
			}
			if n.Left <= i || n.Right <= i || n.Left >= len(nodes) || n.Right >= len(nodes) {
				return fmt.Errorf("node %d: child out of range", i)
			}
		}
		if err := check(n); err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
	}
	return nil
}
