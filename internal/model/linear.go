package model

import (
	"context"
	"fmt"
	"math"
)

// Logistic — бинарная логистическая регрессия.
type Logistic struct {
	classes   []string
	coef      []float64
	intercept float64
}

func NewLogistic(classes []string, coef []float64, intercept float64) (*Logistic, error) {
	if len(classes) != 2 {
		return nil, fmt.Errorf("logistic_regression: %w (got %d classes)", ErrBinaryOnly, len(classes))
	}
	if len(coef) == 0 {
		return nil, fmt.Errorf("logistic_regression: no coefficients")
	}
	cp := make([]float64, len(coef))
	copy(cp, coef)
	return &Logistic{classes: copyClasses(classes), coef: cp, intercept: intercept}, nil
}

func (m *Logistic) Classes() []string { return copyClasses(m.classes) }

func (m *Logistic) PredictProba(_ context.Context, x []float64) ([]float64, error) {
	if err := checkWidth(x, len(m.coef)); err != nil {
		return nil, err
	}
	z := m.intercept
	for i, w := range m.coef {
		z += w * x[i]
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

// Constant всегда возвращает одно и то же распределение. Нужен для canary и тестов.
type Constant struct {
	classes []string
	proba   []float64
}

func NewConstant(classes []string, proba []float64) (*Constant, error) {
	if len(classes) != len(proba) || len(classes) == 0 {
		return nil, fmt.Errorf("%w: %d classes, %d probabilities", ErrBadDistribution, len(classes), len(proba))
	}
	var sum float64
	for _, p := range proba {
		if p < 0 || math.IsNaN(p) {
			return nil, fmt.Errorf("%w: negative or NaN probability", ErrBadDistribution)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-6 {
		return nil, fmt.Errorf("%w: probabilities sum to %v", ErrBadDistribution, sum)
	}
	cp := make([]float64, len(proba))
	copy(cp, proba)
	return &Constant{classes: copyClasses(classes), proba: cp}, nil
}

// NewFixedFraud — бинарная константа с классами "0"/"1" и вероятностью фрода p.
func NewFixedFraud(p float64) *Constant {
	return &Constant{classes: []string{"0", "1"}, proba: []float64{1 - p, p}}
}

func (m *Constant) Classes() []string { return copyClasses(m.classes) }

func (m *Constant) PredictProba(_ context.Context, _ []float64) ([]float64, error) {
	cp := make([]float64, len(m.proba))
	copy(cp, m.proba)
	return cp, nil
}
