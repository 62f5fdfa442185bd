package domain

import "time"

// Имена агентов. Порядок фиксирован: agent1 — транзакции, agent2 — поведение.
const (
	AgentTransaction = "transaction"
	AgentBehavior    = "behavior"
)

// Assessment — ответ эндпоинта /predict. Создается на каждый запрос и нигде не хранится,
// кроме асинхронного аудита.
type Assessment struct {
	Agent1Score float64 `json:"agent1_score"`
	Agent2Score float64 `json:"agent2_score"`
	FinalScore  float64 `json:"final_fraud_score"`
	Fraudulent  bool    `json:"fraudulent"`

	// Служебные поля для аудита, в ответ не попадают
	ID        string        `json:"-"`
	TraceID   string        `json:"-"`
	Coverage1 float64       `json:"-"` // доля признаков agent1, пришедших в записи
	Coverage2 float64       `json:"-"`
	Threshold float64       `json:"-"`
	CreatedAt time.Time     `json:"-"`
	Duration  time.Duration `json:"-"`
}
