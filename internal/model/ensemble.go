package model

import (
	"context"
	"fmt"
)

// RandomForest усредняет нормированные распределения классов в листьях.
type RandomForest struct {
	classes   []string
	nFeatures int
	trees     []Tree
}

func NewRandomForest(classes []string, nFeatures int, trees []Tree) (*RandomForest, error) {
	if len(classes) < 2 {
		return nil, fmt.Errorf("random_forest: need at least 2 classes, got %d", len(classes))
	}
	if len(trees) == 0 {
		return nil, fmt.Errorf("random_forest: no trees")
	}
	for i, t := range trees {
		if err := t.validate(nFeatures, len(classes)); err != nil {
			return nil, fmt.Errorf("random_forest: tree %d: %w", i, err)
		}
		if err := t.checkCounts(); err != nil {
			return nil, fmt.Errorf("random_forest: tree %d: %w", i, err)
		}
	}
	return &RandomForest{classes: copyClasses(classes), nFeatures: nFeatures, trees: trees}, nil
}

func (m *RandomForest) Classes() []string { return copyClasses(m.classes) }

func (m *RandomForest) PredictProba(_ context.Context, x []float64) ([]float64, error) {
	if err := checkWidth(x, m.nFeatures); err != nil {
		return nil, err
	}

	out := make([]float64, len(m.classes))
	for _, t := range m.trees {
		value := t.leaf(x).Value
		var sum float64
		for _, v := range value {
			sum += v
		}
		if sum <= 0 {
			// Пустой лист голосует равномерно
			for k := range out {
				out[k] += 1 / float64(len(out))
			}
			continue
		}
		for k, v := range value {
			out[k] += v / sum
		}
	}

	n := float64(len(m.trees))
	for k := range out {
		out[k] /= n
	}
	return out, nil
}

// GradientBoosting — бинарный бустинг: sigmoid(init + lr * сумма листьев).
type GradientBoosting struct {
	classes      []string
	nFeatures    int
	initScore    float64
	learningRate float64
	trees        []Tree
}

func NewGradientBoosting(classes []string, nFeatures int, initScore, learningRate float64, trees []Tree) (*GradientBoosting, error) {
	if len(classes) != 2 {
		return nil, fmt.Errorf("gradient_boosting: %w (got %d classes)", ErrBinaryOnly, len(classes))
	}
	if learningRate <= 0 {
		return nil, fmt.Errorf("gradient_boosting: learning_rate must be positive, got %v", learningRate)
	}
	for i, t := range trees {
		if err := t.validate(nFeatures, 1); err != nil {
			return nil, fmt.Errorf("gradient_boosting: tree %d: %w", i, err)
		}
	}
	return &GradientBoosting{
		classes:      copyClasses(classes),
		nFeatures:    nFeatures,
		initScore:    initScore,
		learningRate: learningRate,
		trees:        trees,
	}, nil
}

func (m *GradientBoosting) Classes() []string { return copyClasses(m.classes) }

func (m *GradientBoosting) PredictProba(_ context.Context, x []float64) ([]float64, error) {
	if err := checkWidth(x, m.nFeatures); err != nil {
		return nil, err
	}

	raw := m.initScore
	for _, t := range m.trees {
		raw += m.learningRate * t.leaf(x).Value[0]
	}
	p := sigmoid(raw)
	return []float64{1 - p, p}, nil
}
