package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/xela07ax/fraudfusion/internal/features"
)

// MaxBodyBytes — предел тела /predict. Запись содержит десятки признаков, не мегабайты.
const MaxBodyBytes = 1 << 20

// DecodeRecord разбирает тело запроса в плоскую запись "признак -> число".
// Всё остальное (не объект, вложенность, строки, bool, null, хвост после объекта) дает ValidationError.
func DecodeRecord(body io.Reader) (features.Record, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		var mbErr *http.MaxBytesError
		switch {
		case errors.As(err, &mbErr):
			return nil, &ValidationError{
				Reason: fmt.Sprintf("body exceeds %d bytes", mbErr.Limit),
				Status: http.StatusRequestEntityTooLarge,
			}
		case errors.Is(err, io.EOF):
			return nil, invalid("empty body")
		default:
			return nil, invalid("malformed JSON: %v", err)
		}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalid("body must be a JSON object, got %s", jsonKind(raw))
	}

	record := make(features.Record, len(obj))
	for key, v := range obj {
		num, ok := v.(json.Number)
		if !ok {
			return nil, invalid("feature %q must be a number, got %s", key, jsonKind(v))
		}
		f, err := num.Float64()
		if err != nil {
			return nil, invalid("feature %q: %v", key, err)
		}
		record[key] = f
	}

	// После объекта ничего быть не должно
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, invalid("unexpected data after JSON object")
	}
	return record, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// HandlePredict обслуживает POST /predict.
func (s *Scorer) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Only POST allowed", http.StatusMethodNotAllowed)
		return
	}

	// 1. Читаем и валидируем запись; классификаторы не трогаем, пока вход не валиден
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	record, err := DecodeRecord(r.Body)
	if err != nil {
		s.rejectInvalid(err)
		writeError(w, r, s.logger, err)
		return
	}

	// 2. Основной процесс оценки
	res, err := s.Score(r.Context(), record)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}

	// 3. Отправляем результат
	writeJSON(w, http.StatusOK, res)
}

// HandleAgents (GET /v1/agents): какие модели и схемы сейчас загружены.
func (s *Scorer) HandleAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Bundle().Describe())
}

func (s *Scorer) rejectInvalid(err error) {
	kind := "bad_json"
	var vErr *ValidationError
	if errors.As(err, &vErr) && vErr.Status == http.StatusRequestEntityTooLarge {
		kind = "too_large"
	}
	s.metrics.ErrorTotal.WithLabelValues(kind).Inc()
	s.metrics.TotalRequests.WithLabelValues("invalid").Inc()
}
