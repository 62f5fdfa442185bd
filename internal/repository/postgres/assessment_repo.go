package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/xela07ax/fraudfusion/internal/audit"
	"github.com/xela07ax/fraudfusion/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Количество колонок в таблице assessments, которые пишет WriteBatch
const numFields = 12

// Postgres принимает не больше 65535 параметров в одном запросе,
// поэтому пачка больше maxInsertRecords уходит несколькими INSERT.
const (
	maxBindParams    = 65535
	maxInsertRecords = maxBindParams / numFields
)

type AssessmentRepo struct {
	db *sql.DB
}

func NewAssessmentRepo(connString string, maxConns, minConns int32) (*AssessmentRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 15
	}
	db.SetMaxOpenConns(int(maxConns))
	db.SetMaxIdleConns(int(max(minConns, 1)))
	db.SetConnMaxLifetime(5 * time.Minute)
	return &AssessmentRepo{db: db}, nil
}

// NewAssessmentRepoFromDB для тестов и общего пула.
func NewAssessmentRepoFromDB(db *sql.DB) *AssessmentRepo {
	return &AssessmentRepo{db: db}
}

// WriteBatch реализует audit.Sink: один INSERT на каждые maxInsertRecords записей.
// Повтор уже записанной части безопасен благодаря ON CONFLICT.
func (r *AssessmentRepo) WriteBatch(ctx context.Context, records []audit.Record) error {
	for _, part := range splitRecords(records, maxInsertRecords) {
		query, vals, err := buildInsert(part)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
			return fmt.Errorf("postgres: insert %d assessments: %w", len(part), err)
		}
	}
	return nil
}

func splitRecords(records []audit.Record, size int) [][]audit.Record {
	var parts [][]audit.Record
	for len(records) > 0 {
		n := min(size, len(records))
		parts = append(parts, records[:n])
		records = records[n:]
	}
	return parts
}

// buildInsert динамически строит запрос для пакетной вставки.
// ON CONFLICT: повторная доставка той же пачки не дублирует строки.
func buildInsert(records []audit.Record) (string, []interface{}, error) {
	var sb strings.Builder
	vals := make([]interface{}, 0, len(records)*numFields)

	for i, rec := range records {
		if i > 0 {
			sb.WriteString(", ")
		}
		p := i * numFields
		sb.WriteString("(")
		for j := 1; j <= numFields; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", p+j)
		}
		sb.WriteString(")")

		var payload []byte
		if rec.Payload != nil {
			var err error
			if payload, err = json.Marshal(rec.Payload); err != nil {
				return "", nil, fmt.Errorf("postgres: marshal payload %s: %w", rec.ID, err)
			}
		}

		ts := rec.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}

		vals = append(vals,
			rec.ID, rec.TraceID,
			rec.Agent1Score, rec.Agent2Score, rec.FinalScore, rec.Fraudulent,
			rec.Threshold, rec.Coverage1, rec.Coverage2, rec.DurationMs,
			payload, ts,
		)
	}

	query := "INSERT INTO assessments (id, trace_id, agent1_score, agent2_score, final_score, fraudulent, " +
		"threshold, coverage1, coverage2, duration_ms, payload, created_at) VALUES " +
		sb.String() + " ON CONFLICT (id) DO NOTHING"
	return query, vals, nil
}

// GetStats — агрегаты по журналу с момента since. lowCoverage задает порог "вырожденного" входа.
func (r *AssessmentRepo) GetStats(ctx context.Context, since time.Time, lowCoverage float64) (*domain.DecisionStats, error) {
	s := &domain.DecisionStats{HourlyActivity: []domain.ActivityPoint{}}

	// 1. Общие счетчики
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE fraudulent),
			COALESCE(AVG(final_score), 0),
			COUNT(*) FILTER (WHERE LEAST(coverage1, coverage2) < $2)
		FROM assessments
		WHERE created_at > $1`, since, lowCoverage).Scan(
		&s.TotalAssessments,
		&s.Fraudulent,
		&s.AvgFinalScore,
		&s.LowCoverage,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: stats: %w", err)
	}
	if s.TotalAssessments > 0 {
		s.FraudRatio = float64(s.Fraudulent) / float64(s.TotalAssessments)
	}

	// 2. Активность по часам
	rows, err := r.db.QueryContext(ctx, `
		SELECT date_trunc('hour', created_at) AS h, COUNT(*), COUNT(*) FILTER (WHERE fraudulent)
		FROM assessments
		WHERE created_at > $1
		GROUP BY h
		ORDER BY h`, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: hourly activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			hour time.Time
			p    domain.ActivityPoint
		)
		if err := rows.Scan(&hour, &p.Count, &p.Fraudulent); err != nil {
			return nil, fmt.Errorf("postgres: scan hourly activity: %w", err)
		}
		p.Hour = hour.UTC().Format(time.RFC3339)
		s.HourlyActivity = append(s.HourlyActivity, p)
	}
	return s, rows.Err()
}

// Migrate применяет встроенные миграции по порядку имен. Все они идемпотентны.
func (r *AssessmentRepo) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("postgres: migration %s: %w", name, err)
		}
	}
	return nil
}

// Ping проверяет доступность базы при старте
func (r *AssessmentRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *AssessmentRepo) Close() error {
	return r.db.Close()
}
