package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var (
	ErrClassifierUnavailable = errors.New("credit classifier unavailable")
	ErrEmptyPrediction       = errors.New("classifier returned no probabilities")
)

// Prediction is the classifier output: the argmax class and its probability.
type Prediction struct {
	ClassIndex int     `json:"class_index"`
	Confidence float64 `json:"confidence"`
}

// Classifier predicts a credit class from a feature vector.
type Classifier interface {
	Predict(ctx context.Context, features Features) (Prediction, error)
}

// FromProbabilities picks the most probable class.
func FromProbabilities(probs []float64) (Prediction, error) {
	if len(probs) == 0 {
		return Prediction{}, ErrEmptyPrediction
	}
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return Prediction{ClassIndex: best, Confidence: probs[best]}, nil
}

// HTTPClassifier calls a model server that answers
// POST {"features": {...}, "order": [...]} with {"probabilities": [...]}.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

// HTTPOption configures an HTTPClassifier.
type HTTPOption func(*HTTPClassifier)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClassifier) { h.client = c }
}

// NewHTTPClassifier creates a classifier backed by the model server at url.
func NewHTTPClassifier(url string, opts ...HTTPOption) *HTTPClassifier {
	h := &HTTPClassifier{url: url, client: &http.Client{Timeout: 10 * time.Second}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type predictRequest struct {
	Features map[string]float64 `json:"features"`
	Order    []string           `json:"order"`
}

type predictResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

func (h *HTTPClassifier) Predict(ctx context.Context, features Features) (Prediction, error) {
	order := make([]string, len(features))
	for i, f := range features {
		order[i] = f.Name
	}
	body, err := json.Marshal(predictRequest{Features: features.Map(), Order: order})
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to encode features: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Prediction{}, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Prediction{}, fmt.Errorf("failed to decode classifier response: %w", err)
	}
	slog.Debug("HTTPClassifier.Predict: probabilities received", "count", len(out.Probabilities))
	return FromProbabilities(out.Probabilities)
}
