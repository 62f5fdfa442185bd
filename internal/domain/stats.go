package domain

// DecisionStats — агрегаты по журналу оценок (GET /v1/stats).
type DecisionStats struct {
	TotalAssessments int64           `json:"total_assessments"`
	Fraudulent       int64           `json:"fraudulent"`
	FraudRatio       float64         `json:"fraud_ratio"`
	AvgFinalScore    float64         `json:"avg_final_score"`
	LowCoverage      int64           `json:"low_coverage"` // запросы с вырожденным входом
	HourlyActivity   []ActivityPoint `json:"hourly_activity"`
}

type ActivityPoint struct {
	Hour       string `json:"hour"`
	Count      int64  `json:"count"`
	Fraudulent int64  `json:"fraudulent"`
}
