package flow

import (
	"context"
	"strings"

	"github.com/BTreeMap/FarmFinBot/internal/metrics"
	"github.com/BTreeMap/FarmFinBot/internal/models"
)

const (
	// MaxReplyLength bounds generated replies.
	MaxReplyLength = 400
	// promptHistoryLines is how many history entries are replayed in the prompt.
	promptHistoryLines = 4
)

// EducationalFlow answers free-form questions through the text generator.
type EducationalFlow struct {
	generator TextGenerator
	metrics   *metrics.Metrics
}

// NewEducationalFlow creates the flow. A nil generator serves canned replies.
func NewEducationalFlow(gen TextGenerator, m *metrics.Metrics) *EducationalFlow {
	return &EducationalFlow{generator: gen, metrics: m}
}

// Handle replies to message. Any non-educational session is replaced by a fresh one.
func (f *EducationalFlow) Handle(ctx context.Context, message string, sess models.Session) (string, models.Session) {
	if f.generator == nil {
		f.metrics.Fallback()
		return FallbackResponse(message), nil
	}

	edu, ok := sess.(models.EducationalSession)
	if !ok {
		edu = models.NewEducationalSession()
	}
	edu = edu.Append("User: " + message)

	promptMessage := message
	if strings.TrimSpace(message) == "1" {
		promptMessage = menuEducationPrompt
	}
	reply := f.generator.Generate(ctx, BuildPrompt(edu.Recent(promptHistoryLines), promptMessage), MaxReplyLength)

	return reply, edu.Append("Assistant: " + reply)
}

// BuildPrompt renders the persona, recent history and the current message.
func BuildPrompt(history []string, message string) string {
	var b strings.Builder
	b.WriteString(educationalPersona)
	b.WriteString("\n\nHistorial:\n")
	b.WriteString(strings.Join(history, "\n"))
	b.WriteString("\n\nUsuario: ")
	b.WriteString(message)
	b.WriteString("\nAsistente:")
	return b.String()
}

// FallbackResponse picks a canned paragraph by keyword.
func FallbackResponse(message string) string {
	lower := strings.ToLower(message)
	for _, fb := range fallbackResponses {
		if strings.Contains(lower, fb.keyword) {
			return fb.response
		}
	}
	return genericFallbackResponse
}
