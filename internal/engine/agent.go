package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/xela07ax/fraudfusion/internal/domain"
	"github.com/xela07ax/fraudfusion/internal/features"
	"github.com/xela07ax/fraudfusion/internal/model"
)

// Agent — пара "схема признаков + классификатор". Неизменяем после NewAgent.
type Agent struct {
	Name       string
	Schema     features.Schema
	Classifier model.Classifier
	FraudLabel string

	// Для /v1/agents
	Kind   model.Kind
	Source string

	fraudIndex int
}

// NewAgent фиксирует индекс класса "фрод" один раз, при сборке.
func NewAgent(name string, schema features.Schema, clf model.Classifier, fraudLabel string) (*Agent, error) {
	if schema.Len() == 0 {
		return nil, fmt.Errorf("agent %s: %w", name, features.ErrEmptySchema)
	}
	if clf == nil {
		return nil, fmt.Errorf("agent %s: classifier is not loaded", name)
	}
	idx, err := model.FraudIndex(clf.Classes(), fraudLabel)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}
	return &Agent{
		Name:       name,
		Schema:     schema,
		Classifier: clf,
		FraudLabel: fraudLabel,
		fraudIndex: idx,
	}, nil
}

// FraudProbability выравнивает запись по схеме агента и берет вероятность фрода.
func (a *Agent) FraudProbability(ctx context.Context, record features.Record, def float64) (float64, features.CoverageReport, error) {
	cov := features.Coverage(record, a.Schema)
	vec := features.Align(record, a.Schema, def)

	proba, err := a.Classifier.PredictProba(ctx, vec)
	if err != nil {
		return 0, cov, err
	}
	if a.fraudIndex >= len(proba) {
		return 0, cov, fmt.Errorf("%w: %d probabilities, fraud index %d", model.ErrBadDistribution, len(proba), a.fraudIndex)
	}
	return proba[a.fraudIndex], cov, nil
}

func (a *Agent) Info() domain.AgentInfo {
	return domain.AgentInfo{
		Name:       a.Name,
		Kind:       string(a.Kind),
		Source:     a.Source,
		Classes:    a.Classifier.Classes(),
		FraudLabel: a.FraudLabel,
		Features:   a.Schema.Names(),
	}
}

// Bundle — всё, что загружается на старте: два агента.
// Передается в Scorer явно, глобального состояния нет.
type Bundle struct {
	Transaction *Agent // agent1
	Behavior    *Agent // agent2
}

func (b *Bundle) Validate() error {
	if b == nil {
		return errors.New("bundle is nil")
	}
	if b.Transaction == nil {
		return fmt.Errorf("agent %s is not loaded", domain.AgentTransaction)
	}
	if b.Behavior == nil {
		return fmt.Errorf("agent %s is not loaded", domain.AgentBehavior)
	}
	return nil
}

func (b *Bundle) Describe() []domain.AgentInfo {
	return []domain.AgentInfo{b.Transaction.Info(), b.Behavior.Info()}
}
