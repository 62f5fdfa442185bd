package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ThrottleError — модельный сервер попросил подождать (429/503 с Retry-After).
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

type remoteRequest struct {
	Features []float64 `json:"features"`
}

type remoteResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

// Remote вызывает внешний модельный сервер по HTTP.
// Ретраи, лимиты и предохранитель навешиваются снаружи (engine.ReliabilityWrapper).
type Remote struct {
	endpoint  string
	classes   []string
	nFeatures int
	client    *http.Client
}

func NewRemote(endpoint string, classes []string, nFeatures int, client *http.Client) (*Remote, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("remote: endpoint is required")
	}
	if len(classes) < 2 {
		return nil, fmt.Errorf("remote: need at least 2 classes, got %d", len(classes))
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Remote{
		endpoint:  endpoint,
		classes:   copyClasses(classes),
		nFeatures: nFeatures,
		client:    client,
	}, nil
}

func (m *Remote) Classes() []string { return copyClasses(m.classes) }

func (m *Remote) Endpoint() string { return m.endpoint }

func (m *Remote) PredictProba(ctx context.Context, x []float64) ([]float64, error) {
	if err := checkWidth(x, m.nFeatures); err != nil {
		return nil, err
	}

	// 1. Готовим запрос
	body, err := json.Marshal(remoteRequest{Features: x})
	if err != nil {
		return nil, fmt.Errorf("remote: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// 2. Вызываем модельный сервер
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: call %s: %w", m.endpoint, err)
	}
	defer resp.Body.Close()

	// 3. Разбираем статус: 429/503 означают "подожди", остальное считаем ошибкой
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		return nil, &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      fmt.Errorf("model server status %d", resp.StatusCode),
		}
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("remote: model server status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	// 4. Проверяем форму ответа
	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("remote: decode response: %w", err)
	}
	if len(out.Probabilities) != len(m.classes) {
		return nil, fmt.Errorf("%w: got %d probabilities for %d classes", ErrBadDistribution, len(out.Probabilities), len(m.classes))
	}
	return out.Probabilities, nil
}

func parseRetryAfter(v string) time.Duration {
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}
