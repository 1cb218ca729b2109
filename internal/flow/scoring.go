package flow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/BTreeMap/FarmFinBot/internal/metrics"
	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/BTreeMap/FarmFinBot/internal/scoring"
)

// ScoringFlow walks the user through the credit questionnaire.
type ScoringFlow struct {
	scorer  CreditScorer
	metrics *metrics.Metrics
}

// NewScoringFlow creates the flow. A nil scorer makes the flow unavailable.
func NewScoringFlow(scorer CreditScorer, m *metrics.Metrics) *ScoringFlow {
	return &ScoringFlow{scorer: scorer, metrics: m}
}

// Available reports whether questionnaires can be scored.
func (f *ScoringFlow) Available() bool {
	return f.scorer != nil && f.scorer.Available()
}

// Start begins a new questionnaire, replacing any current session.
func (f *ScoringFlow) Start(_ context.Context) (string, models.Session) {
	if !f.Available() {
		return ScoringUnavailableMessage, nil
	}
	f.metrics.FlowStarted(string(models.ModeScoring))
	return scoring.Questions[0].Format(), models.NewScoringSession()
}

// Advance validates answer against the current question.
func (f *ScoringFlow) Advance(ctx context.Context, answer string, sess models.Session) (string, models.Session) {
	sc, ok := sess.(models.ScoringSession)
	if !ok {
		return GreetingMessage, nil
	}
	if IsCancel(answer) {
		f.metrics.FlowEnded(string(models.ModeScoring), metrics.OutcomeCancelled)
		return ScoringCancelledMessage, models.NewEducationalSession()
	}
	if sc.Step < 0 || sc.Step >= len(scoring.Questions) {
		slog.Warn("ScoringFlow.Advance: step out of range", "step", sc.Step)
		f.metrics.FlowEnded(string(models.ModeScoring), metrics.OutcomeFailed)
		return SomethingWentWrongMessage, models.NewEducationalSession()
	}

	q := scoring.Questions[sc.Step]
	value, rejection := validateAnswer(q, answer)
	if rejection != "" {
		return rejection + q.Format(), nil
	}

	next := sc.Answer(q.Key, value)
	if next.Step < len(scoring.Questions) {
		return scoring.Questions[next.Step].Format(), next
	}

	slog.Debug("ScoringFlow.Advance: questionnaire complete", "answers", len(next.Answers))
	result := f.scorer.CreditScore(ctx, next.Answers)
	f.metrics.FlowEnded(string(models.ModeScoring), metrics.OutcomeCompleted)
	return result, models.NewEducationalSession()
}

// validateAnswer returns the value to store, or a rejection prefix.
func validateAnswer(q scoring.Question, answer string) (string, string) {
	switch q.Type {
	case scoring.Categorical:
		n, err := strconv.Atoi(strings.TrimSpace(answer))
		if err != nil {
			return "", invalidAnswerPrefix
		}
		idx := n - 1
		if idx < 0 || idx >= len(q.Options) {
			return "", invalidOptionPrefix
		}
		return q.Options[idx].Label, ""
	case scoring.BuroSpecial:
		if strings.EqualFold(strings.TrimSpace(answer), "no") {
			return scoring.BuroUnknown, ""
		}
		fallthrough
	default:
		if _, ok := scoring.ParseNumber(answer); !ok {
			return "", invalidAnswerPrefix
		}
		return answer, ""
	}
}
