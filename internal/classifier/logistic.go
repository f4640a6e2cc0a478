package classifier

import (
	"errors"
	"math"
)

// Logistic is a binary logistic regression.
type Logistic struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	// Threshold on the fraud probability; 0 means 0.5.
	Threshold float64 `json:"threshold,omitempty"`
}

func (m *Logistic) Kind() Kind { return KindLogistic }
func (m *Logistic) Width() int { return len(m.Weights) }

// Probability returns P(fraud | x).
func (m *Logistic) Probability(x []float64) float64 {
	z := m.Intercept
	for i, w := range m.Weights {
		z += w * x[i]
	}
	return 1 / (1 + math.Exp(-z))
}

func (m *Logistic) Predict(x []float64) int {
	th := m.Threshold
	if th == 0 {
		th = 0.5
	}
	if m.Probability(x) >= th {
		return 1
	}
	return 0
}

func (m *Logistic) validate() error {
	if len(m.Weights) == 0 {
		return errors.New("logistic: no weights")
	}
	if m.Threshold < 0 || m.Threshold >= 1 {
		return errors.New("logistic: threshold must be in [0, 1)")
	}
	return nil
}
