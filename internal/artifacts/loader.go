package artifacts

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xela07ax/fraudfusion/internal/domain"
	"github.com/xela07ax/fraudfusion/internal/engine"
	"github.com/xela07ax/fraudfusion/internal/features"
	"github.com/xela07ax/fraudfusion/internal/model"
)

// StartupError — артефакт агента отсутствует или поврежден. Шлюз с такой ошибкой не стартует.
type StartupError struct {
	Agent string
	Stage string // schema, model, build
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup: agent %s: %s: %v", e.Agent, e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

type Loader struct {
	src         Source
	reliability engine.ReliabilityConfig
	metrics     *engine.Metrics
	logger      *zap.Logger
}

func NewLoader(src Source, reliability engine.ReliabilityConfig, metrics *engine.Metrics, logger *zap.Logger) *Loader {
	return &Loader{
		src:         src,
		reliability: reliability,
		metrics:     metrics,
		logger:      logger.Named("artifacts"),
	}
}

// LoadBundle загружает оба агента параллельно. Любая ошибка имеет тип StartupError.
func (l *Loader) LoadBundle(ctx context.Context) (*engine.Bundle, error) {
	var bundle engine.Bundle

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := l.LoadAgent(gCtx, domain.AgentTransaction)
		bundle.Transaction = a
		return err
	})
	g.Go(func() error {
		a, err := l.LoadAgent(gCtx, domain.AgentBehavior)
		bundle.Behavior = a
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (l *Loader) LoadAgent(ctx context.Context, name string) (*engine.Agent, error) {
	// 1. Схема признаков: JSON-массив строк
	rawSchema, err := l.src.Schema(ctx, name)
	if err != nil {
		return nil, &StartupError{Agent: name, Stage: "schema", Err: err}
	}
	schema, err := features.ParseSchema(rawSchema)
	if err != nil {
		return nil, &StartupError{Agent: name, Stage: "schema", Err: err}
	}

	// 2. Артефакт модели
	rawModel, err := l.src.Model(ctx, name)
	if err != nil {
		return nil, &StartupError{Agent: name, Stage: "model", Err: err}
	}
	art, err := model.ParseArtifact(rawModel)
	if err != nil {
		return nil, &StartupError{Agent: name, Stage: "model", Err: err}
	}

	// 3. Позиционный контракт: модель обучена ровно на этих признаках
	if art.NFeatures != schema.Len() {
		return nil, &StartupError{Agent: name, Stage: "build", Err: fmt.Errorf(
			"%w: model expects %d features, schema lists %d", model.ErrFeatureCount, art.NFeatures, schema.Len())}
	}

	// nil: для kind=remote клиент строится по timeout_ms артефакта
	clf, err := art.Build(nil)
	if err != nil {
		return nil, &StartupError{Agent: name, Stage: "build", Err: err}
	}
	if art.Kind == model.KindRemote {
		// Оборачиваем в Reliability (Retries, Circuit Breaker)
		clf = engine.NewReliabilityWrapper(name+"-remote", clf, l.reliability, l.metrics)
	}

	agent, err := engine.NewAgent(name, schema, clf, art.FraudLabel)
	if err != nil {
		return nil, &StartupError{Agent: name, Stage: "build", Err: err}
	}
	agent.Kind = art.Kind
	agent.Source = l.src.Name()

	l.logger.Info("agent loaded",
		zap.String("agent", name),
		zap.String("kind", string(art.Kind)),
		zap.String("source", l.src.Name()),
		zap.Int("features", schema.Len()),
	)
	return agent, nil
}

// Check — разбор и сверка пары артефактов без сборки агента (fraudctl publish).
func Check(rawModel, rawSchema []byte) (*model.Artifact, features.Schema, error) {
	schema, err := features.ParseSchema(rawSchema)
	if err != nil {
		return nil, features.Schema{}, err
	}
	art, err := model.ParseArtifact(rawModel)
	if err != nil {
		return nil, features.Schema{}, err
	}
	if art.NFeatures != schema.Len() {
		return nil, features.Schema{}, fmt.Errorf("%w: model expects %d features, schema lists %d",
			model.ErrFeatureCount, art.NFeatures, schema.Len())
	}
	if _, err := model.FraudIndex(art.Classes, art.FraudLabel); err != nil {
		return nil, features.Schema{}, err
	}
	return art, schema, nil
}
