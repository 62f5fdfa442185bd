package postgres

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/fraudfusion/internal/audit"
)

func TestBuildInsert(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []audit.Record{
		{ID: "a", TraceID: "t1", Agent1Score: 0.8, Agent2Score: 0.4, FinalScore: 0.6, Fraudulent: true, Timestamp: ts,
			Payload: map[string]float64{"amount": 500}},
		{ID: "b", TraceID: "t2", Timestamp: ts},
	}

	query, vals, err := buildInsert(records)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(query, "INSERT INTO assessments (id, trace_id,"))
	assert.Contains(t, query, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12), ($13,")
	assert.Contains(t, query, "$24)")
	assert.NotContains(t, query, "$25")
	assert.True(t, strings.HasSuffix(query, "ON CONFLICT (id) DO NOTHING"))

	require.Len(t, vals, 2*numFields)
	assert.Equal(t, "a", vals[0])
	assert.Equal(t, true, vals[5])
	assert.JSONEq(t, `{"amount": 500}`, string(vals[10].([]byte)))
	assert.Nil(t, vals[numFields+10], "no payload stored as NULL")
	assert.Equal(t, ts, vals[11])
}

func TestBuildInsert_FillsTimestamp(t *testing.T) {
	_, vals, err := buildInsert([]audit.Record{{ID: "x"}})
	require.NoError(t, err)
	assert.False(t, vals[11].(time.Time).IsZero())
}

func TestMigrationsEmbedded(t *testing.T) {
	body, err := migrations.ReadFile("migrations/001_assessments.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS assessments")
}

func TestSplitRecords_BindParamLimit(t *testing.T) {
	assert.Equal(t, 5461, maxInsertRecords)

	records := make([]audit.Record, 6000)
	for i := range records {
		records[i].ID = fmt.Sprintf("id-%d", i)
	}

	parts := splitRecords(records, maxInsertRecords)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], maxInsertRecords)
	assert.Len(t, parts[1], 6000-maxInsertRecords)
	assert.Equal(t, "id-5461", parts[1][0].ID)

	for _, part := range parts {
		_, vals, err := buildInsert(part)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(vals), maxBindParams)
	}

	// ровно на границе — один запрос
	assert.Len(t, splitRecords(records[:maxInsertRecords], maxInsertRecords), 1)
	assert.Empty(t, splitRecords(nil, maxInsertRecords))
}
