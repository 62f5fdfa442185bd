package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArtifact_RandomForest(t *testing.T) {
	raw := `{
		"kind": "random_forest",
		"classes": ["0", "1"],
		"fraud_label": "1",
		"n_features": 2,
		"trees": [
			{"nodes": [
				{"feature": 1, "threshold": 20.5, "left": 1, "right": 2},
				{"left": -1, "right": -1, "value": [30, 10]},
				{"left": -1, "right": -1, "value": [5, 15]}
			]}
		]
	}`

	a, err := ParseArtifact([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, KindRandomForest, a.Kind)

	clf, err := a.Build(nil)
	require.NoError(t, err)

	p, err := clf.PredictProba(context.Background(), []float64{500, 23})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, p, 1e-12)
}

func TestParseArtifact_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown field":   `{"kind":"constant","classes":["0","1"],"fraud_label":"1","n_features":1,"probabilities":[0.5,0.5],"typo":1}`,
		"no n_features":   `{"kind":"constant","classes":["0","1"],"fraud_label":"1","probabilities":[0.5,0.5]}`,
		"no fraud label":  `{"kind":"constant","classes":["0","1"],"n_features":1,"probabilities":[0.5,0.5]}`,
		"not json":        `model.pkl`,
		"array top level": `[1,2,3]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseArtifact([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestArtifact_BuildErrors(t *testing.T) {
	a := &Artifact{Kind: "svm", Classes: []string{"0", "1"}, FraudLabel: "1", NFeatures: 1}
	_, err := a.Build(nil)
	assert.ErrorIs(t, err, ErrUnknownKind)

	a = &Artifact{Kind: KindLogistic, Classes: []string{"0", "1"}, FraudLabel: "1", NFeatures: 3, Coef: []float64{1}}
	_, err = a.Build(nil)
	assert.ErrorIs(t, err, ErrFeatureCount)
}

func TestRemote_PredictProba(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"probabilities": [0.3, 0.7]}`))
	}))
	defer srv.Close()

	a := &Artifact{Kind: KindRemote, Classes: []string{"0", "1"}, FraudLabel: "1", NFeatures: 2, Endpoint: srv.URL, TimeoutMs: 500}
	clf, err := a.Build(nil)
	require.NoError(t, err)

	p, err := clf.PredictProba(context.Background(), []float64{1.5, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.7}, p)
	assert.Equal(t, []float64{1.5, 2}, got.Features)
}

func TestRemote_Throttled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	clf, err := NewRemote(srv.URL, []string{"0", "1"}, 1, srv.Client())
	require.NoError(t, err)

	_, err = clf.PredictProba(context.Background(), []float64{1})
	var tErr *ThrottleError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, 3*time.Second, tErr.RetryAfter)
}

func TestRemote_BadShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"probabilities": [1]}`))
	}))
	defer srv.Close()

	clf, err := NewRemote(srv.URL, []string{"0", "1"}, 1, srv.Client())
	require.NoError(t, err)

	_, err = clf.PredictProba(context.Background(), []float64{1})
	assert.ErrorIs(t, err, ErrBadDistribution)
}
