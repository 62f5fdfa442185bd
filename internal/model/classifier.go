// Package model содержит классификаторы, которые шлюз загружает из артефактов.
// Все реализации неизменяемы после создания и безопасны для параллельного вызова.
package model

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Classifier — обученная модель: по упорядоченному вектору признаков
// возвращает распределение вероятностей по классам Classes().
type Classifier interface {
	PredictProba(ctx context.Context, x []float64) ([]float64, error)
	Classes() []string
}

type Kind string

const (
	KindRandomForest     Kind = "random_forest"
	KindGradientBoosting Kind = "gradient_boosting"
	KindLogistic         Kind = "logistic_regression"
	KindConstant         Kind = "constant"
	KindRemote           Kind = "remote"
)

var (
	ErrFeatureCount    = errors.New("model: feature count mismatch")
	ErrUnknownKind     = errors.New("model: unknown artifact kind")
	ErrFraudLabel      = errors.New("model: fraud label not among classes")
	ErrBinaryOnly      = errors.New("model: kind supports binary classification only")
	ErrBadDistribution = errors.New("model: bad probability distribution")
)

// FraudIndex явно сопоставляет метку "фрод" с позицией в выходе модели.
// Никакого молчаливого "берем индекс 1".
func FraudIndex(classes []string, label string) (int, error) {
	for i, c := range classes {
		if c == label {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q not in %v", ErrFraudLabel, label, classes)
}

func checkWidth(x []float64, n int) error {
	if len(x) != n {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(x), n)
	}
	return nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func copyClasses(classes []string) []string {
	cp := make([]string, len(classes))
	copy(cp, classes)
	return cp
}
