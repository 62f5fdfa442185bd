package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ValidationError — тело запроса не является плоским объектом "признак -> число".
// Клиентская ошибка, повтор на нашей стороне не нужен.
type ValidationError struct {
	Reason string
	Status int // 400 по умолчанию, 413 для слишком большого тела
}

func (e *ValidationError) Error() string {
	return "invalid record: " + e.Reason
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}

// InferenceError — классификатор агента не смог посчитать вероятность.
type InferenceError struct {
	Agent string
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("agent %s: inference failed: %v", e.Agent, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

type errorBody struct {
	Error   string `json:"error"`
	Agent   string `json:"agent,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// writeError: единственное место, где ошибки превращаются в HTTP-статусы.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	traceID := TraceIDFromContext(r.Context())

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		status := vErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorBody{Error: vErr.Error(), TraceID: traceID})
		return
	}

	var iErr *InferenceError
	if errors.As(err, &iErr) {
		// tip: детали модельного сервера клиенту не отдаем, только в лог
		logger.Error("inference failed",
			zap.String("trace_id", traceID),
			zap.String("agent", iErr.Agent),
			zap.Error(iErr.Err),
		)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "inference failed", Agent: iErr.Agent, TraceID: traceID})
		return
	}

	logger.Error("unexpected error", zap.String("trace_id", traceID), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", TraceID: traceID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
