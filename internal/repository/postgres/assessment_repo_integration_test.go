//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xela07ax/fraudfusion/internal/audit"
)

func newTestRepo(t *testing.T) *AssessmentRepo {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fraudfusion"),
		tcpostgres.WithUsername("fraud"),
		tcpostgres.WithPassword("fraud"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("warning: failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := NewAssessmentRepo(dsn, 5, 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.Ping(ctx))
	require.NoError(t, repo.Migrate(ctx))
	require.NoError(t, repo.Migrate(ctx), "migrations are idempotent")
	return repo
}

func TestAssessmentRepo_WriteAndStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []audit.Record{
		{ID: "5f0c6a1e-0000-4000-8000-000000000001", TraceID: "t1", Agent1Score: 0.8, Agent2Score: 0.4, FinalScore: 0.6,
			Fraudulent: true, Threshold: 0.5, Coverage1: 1, Coverage2: 1, Timestamp: now,
			Payload: map[string]float64{"amount": 500}},
		{ID: "5f0c6a1e-0000-4000-8000-000000000002", TraceID: "t2", Agent1Score: 0.1, Agent2Score: 0.1, FinalScore: 0.1,
			Threshold: 0.5, Coverage1: 0, Coverage2: 0, Timestamp: now},
	}
	require.NoError(t, repo.WriteBatch(ctx, records))
	// повторная доставка не дублирует
	require.NoError(t, repo.WriteBatch(ctx, records))

	stats, err := repo.GetStats(ctx, now.Add(-time.Hour), 0.5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalAssessments)
	assert.Equal(t, int64(1), stats.Fraudulent)
	assert.InDelta(t, 0.5, stats.FraudRatio, 1e-9)
	assert.InDelta(t, 0.35, stats.AvgFinalScore, 1e-9)
	assert.Equal(t, int64(1), stats.LowCoverage)
	require.Len(t, stats.HourlyActivity, 1)
	assert.Equal(t, int64(2), stats.HourlyActivity[0].Count)
}

func TestAssessmentRepo_EmptyStats(t *testing.T) {
	repo := newTestRepo(t)

	stats, err := repo.GetStats(context.Background(), time.Now().Add(-24*time.Hour), 0.5)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAssessments)
	assert.Zero(t, stats.FraudRatio)
	assert.Empty(t, stats.HourlyActivity)
}

func TestAssessmentRepo_BatchAboveBindParamLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := make([]audit.Record, 6000)
	for i := range records {
		records[i] = audit.Record{ID: uuid.NewString(), Threshold: 0.5, Coverage1: 1, Coverage2: 1, Timestamp: now}
	}
	require.NoError(t, repo.WriteBatch(ctx, records))

	stats, err := repo.GetStats(ctx, now.Add(-time.Hour), 0.5)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), stats.TotalAssessments)
}
