package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Artifact — сериализованная модель, которую выпускает офлайн-пайплайн обучения.
// Поля, не относящиеся к Kind, игнорируются.
type Artifact struct {
	Kind       Kind     `json:"kind"`
	Classes    []string `json:"classes"`
	FraudLabel string   `json:"fraud_label"`
	NFeatures  int      `json:"n_features"`

	// random_forest, gradient_boosting
	Trees        []Tree  `json:"trees,omitempty"`
	InitScore    float64 `json:"init_score,omitempty"`
	LearningRate float64 `json:"learning_rate,omitempty"`

	// logistic_regression
	Coef      []float64 `json:"coef,omitempty"`
	Intercept float64   `json:"intercept,omitempty"`

	// constant
	Probabilities []float64 `json:"probabilities,omitempty"`

	// remote
	Endpoint  string `json:"endpoint,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
}

// ParseArtifact строго разбирает JSON артефакта: неизвестные поля считаются ошибкой,
// чтобы опечатка в офлайн-пайплайне не превратилась в молча неверную модель.
func ParseArtifact(data []byte) (*Artifact, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var a Artifact
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("model: decode artifact: %w", err)
	}
	if a.NFeatures <= 0 {
		return nil, fmt.Errorf("model: n_features must be positive, got %d", a.NFeatures)
	}
	if a.FraudLabel == "" {
		return nil, fmt.Errorf("model: fraud_label is required")
	}
	return &a, nil
}

// Build собирает классификатор по артефакту. httpClient нужен только для KindRemote.
func (a *Artifact) Build(httpClient *http.Client) (Classifier, error) {
	switch a.Kind {
	case KindRandomForest:
		return NewRandomForest(a.Classes, a.NFeatures, a.Trees)
	case KindGradientBoosting:
		return NewGradientBoosting(a.Classes, a.NFeatures, a.InitScore, a.LearningRate, a.Trees)
	case KindLogistic:
		if len(a.Coef) != a.NFeatures {
			return nil, fmt.Errorf("%w: %d coefficients for n_features=%d", ErrFeatureCount, len(a.Coef), a.NFeatures)
		}
		return NewLogistic(a.Classes, a.Coef, a.Intercept)
	case KindConstant:
		return NewConstant(a.Classes, a.Probabilities)
	case KindRemote:
		if httpClient == nil && a.TimeoutMs > 0 {
			httpClient = &http.Client{Timeout: time.Duration(a.TimeoutMs) * time.Millisecond}
		}
		return NewRemote(a.Endpoint, a.Classes, a.NFeatures, httpClient)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, a.Kind)
	}
}
