// Package fusion объединяет оценки двух независимых агентов в одно решение.
package fusion

import (
	"errors"
	"fmt"
)

// DefaultThreshold — порог решения. Сравнение строгое: ровно 0.5 не фрод.
const DefaultThreshold = 0.5

// Rule — правило слияния двух вероятностей. Можно заменить без изменения Fuser.
type Rule interface {
	Combine(a, b float64) float64
}

// Mean — невзвешенное среднее. Калибровки между агентами нет, поэтому веса равные.
type Mean struct{}

func (Mean) Combine(a, b float64) float64 { return (a + b) / 2 }

// Weighted — взвешенное среднее, веса нормируются на сумму.
type Weighted struct {
	A float64
	B float64
}

func NewWeighted(a, b float64) (Weighted, error) {
	if a < 0 || b < 0 {
		return Weighted{}, fmt.Errorf("fusion: weights must be non-negative, got %v/%v", a, b)
	}
	if a+b == 0 {
		return Weighted{}, errors.New("fusion: weights must not both be zero")
	}
	return Weighted{A: a, B: b}, nil
}

func (w Weighted) Combine(a, b float64) float64 {
	return (w.A*a + w.B*b) / (w.A + w.B)
}

// Decision — итог слияния.
type Decision struct {
	Fused      float64
	Fraudulent bool
}

// Fuser не валидирует и не обрезает входы: значения вне [0,1] проходят как есть.
type Fuser struct {
	rule      Rule
	threshold float64
}

// New создает Fuser. nil rule означает Mean.
func New(rule Rule, threshold float64) *Fuser {
	if rule == nil {
		rule = Mean{}
	}
	return &Fuser{rule: rule, threshold: threshold}
}

func NewDefault() *Fuser {
	return New(Mean{}, DefaultThreshold)
}

func (f *Fuser) Fuse(a, b float64) Decision {
	fused := f.rule.Combine(a, b)
	return Decision{
		Fused:      fused,
		Fraudulent: fused > f.threshold,
	}
}

func (f *Fuser) Threshold() float64 { return f.threshold }
