package domain

// AgentInfo — описание загруженного агента для GET /v1/agents.
type AgentInfo struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`        // random_forest, gradient_boosting, ...
	Source     string   `json:"source"`      // file или redis
	Classes    []string `json:"classes"`     // выход модели по порядку
	FraudLabel string   `json:"fraud_label"` // какой класс считается фродом
	Features   []string `json:"features"`    // порядок признаков во входном векторе
}
