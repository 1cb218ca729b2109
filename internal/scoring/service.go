package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Messages returned by CreditScore.
const (
	FailureMessage     = "Lo siento, tuve un problema al calcular tu perfil."
	NotLoadedMessage   = "Error: El modelo de scoring no está cargado."
	UndeterminedLabel  = "Indeterminado"
	resultMessageShape = "¡Gracias! 📈\nTu clasificación crediticia es: **%s**.\n(Confianza: %.2f%%)\n\nRecuerda, es una estimación."
)

// ClassNames maps classifier indices to credit labels.
var ClassNames = map[int]string{0: "Bueno", 1: "Regular", 2: "Malo"}

// ClassName returns the label for a class index.
func ClassName(idx int) string {
	if name, ok := ClassNames[idx]; ok {
		return name
	}
	return UndeterminedLabel
}

// Service turns completed questionnaires into a user-facing credit result.
type Service struct {
	classifier Classifier
}

// NewService wraps a classifier. A nil classifier leaves the service unavailable.
func NewService(c Classifier) *Service {
	return &Service{classifier: c}
}

// Available reports whether a classifier is configured.
func (s *Service) Available() bool {
	return s != nil && s.classifier != nil
}

// Predict builds the feature vector from answers and classifies it.
func (s *Service) Predict(ctx context.Context, answers map[string]string) (Prediction, error) {
	if !s.Available() {
		return Prediction{}, ErrClassifierUnavailable
	}
	return s.classifier.Predict(ctx, BuildFeatures(answers))
}

// CreditScore classifies answers and renders the result. Failures are logged
// and reported as FailureMessage.
func (s *Service) CreditScore(ctx context.Context, answers map[string]string) string {
	pred, err := s.Predict(ctx, answers)
	if errors.Is(err, ErrClassifierUnavailable) {
		return NotLoadedMessage
	}
	if err != nil {
		slog.Error("Scoring.CreditScore: prediction failed", "error", err)
		return FailureMessage
	}
	name := ClassName(pred.ClassIndex)
	slog.Info("Scoring.CreditScore: classified", "class", name, "confidence", pred.Confidence)
	return fmt.Sprintf(resultMessageShape, strings.ToUpper(name), pred.Confidence*100)
}
