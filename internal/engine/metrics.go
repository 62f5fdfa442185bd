package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: полное время /predict (оба агента + слияние)
	RequestDuration *prometheus.HistogramVec

	// Traffic: запросы по итоговому статусу (ok, invalid, inference_error)
	TotalRequests *prometheus.CounterVec

	// Распределение вероятностей фрода по агентам
	AgentScore *prometheus.HistogramVec

	// Итоговые решения: fraudulent=true/false
	Decisions *prometheus.CounterVec

	// Вход, в котором пришла меньшая часть признаков агента
	DegenerateInputs *prometheus.CounterVec

	// Errors: классификация отказов
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker удаленной модели (0 - ок, 1 - выбило, 0.5 - half-open)
	CircuitBreakerState *prometheus.GaugeVec

	// Audit: заполненность буфера (backpressure)
	AuditBufferFill prometheus.Gauge

	// Горячая перезагрузка артефактов: result=ok/failed
	ArtifactReloads *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudfusion_request_duration_seconds",
			Help:    "Histogram of /predict latencies.",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"status"}),

		TotalRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fraudfusion_requests_total",
			Help: "Total number of scoring requests by outcome.",
		}, []string{"status"}),

		AgentScore: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fraudfusion_agent_score",
			Help:    "Fraud probability reported by each agent.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"agent"}),

		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fraudfusion_decisions_total",
			Help: "Fused decisions by verdict.",
		}, []string{"fraudulent"}),

		DegenerateInputs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fraudfusion_degenerate_inputs_total",
			Help: "Requests where an agent received less than the minimum share of its features.",
		}, []string{"agent"}),

		ErrorTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fraudfusion_errors_total",
			Help: "Total number of errors by type.",
		}, []string{"type"}), // типы: bad_json, too_large, unknown_feature, inference, rate_limit

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "fraudfusion_circuit_breaker_state",
			Help: "Current state of the remote model circuit breaker (0=closed, 0.5=half-open, 1=open).",
		}, []string{"model"}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "fraudfusion_audit_buffer_utilization",
			Help: "Current number of assessments waiting in the audit buffer.",
		}),

		ArtifactReloads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "fraudfusion_artifact_reloads_total",
			Help: "Artifact hot reload attempts by result.",
		}, []string{"result"}),
	}
}
