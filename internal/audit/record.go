package audit

import "time"

// Record — запись журнала оценок. Одна на каждый успешный /predict.
type Record struct {
	ID          string    `json:"id"`       // UUID оценки
	TraceID     string    `json:"trace_id"` // Сквозной ID запроса
	Agent1Score float64   `json:"agent1_score"`
	Agent2Score float64   `json:"agent2_score"`
	FinalScore  float64   `json:"final_fraud_score"`
	Fraudulent  bool      `json:"fraudulent"`
	Threshold   float64   `json:"threshold"`
	Coverage1   float64   `json:"coverage1"`
	Coverage2   float64   `json:"coverage2"`
	DurationMs  float64   `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`

	// Сама запись признаков: нужна для разбора инцидентов
	Payload map[string]float64 `json:"payload,omitempty"`
}
