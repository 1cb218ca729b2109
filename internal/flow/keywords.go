package flow

import "strings"

// Intent is the flow a free-text message asks for.
type Intent int

const (
	IntentEducational Intent = iota
	IntentTransfer
	IntentScoring
)

func (i Intent) String() string {
	switch i {
	case IntentTransfer:
		return "transfer"
	case IntentScoring:
		return "scoring"
	default:
		return "educational"
	}
}

var (
	greetingKeywords    = []string{"hola", "hi", "inicio", "start", "menu"}
	cancelKeywords      = []string{"cancelar", "salir", "menu", "exit"}
	educationalKeywords = []string{"1", "educación", "aprender", "háblame", "enseñame", "dime", "info", "finanza", "ahorro", "inversión"}
	transferKeywords    = []string{"2", "transferencia", "transferir", "pago"}
	scoringKeywords     = []string{"3", "calculadora", "crédito", "calcular", "préstamo", "perfil"}
	affirmativeKeywords = []string{"sí", "si", "s", "confirmar"}
	negativeKeywords    = []string{"no", "n", "cancelar"}
)

// IsGreeting reports whether msg is empty or exactly a greeting keyword.
func IsGreeting(msg string) bool {
	return msg == "" || equalsAny(msg, greetingKeywords)
}

// IsCancel reports whether msg aborts the active flow.
func IsCancel(msg string) bool {
	return equalsAny(msg, cancelKeywords)
}

// ClassifyIntent matches keywords by substring. The first matching set wins,
// in the order educational, transfer, scoring; no match is educational.
func ClassifyIntent(msg string) Intent {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, educationalKeywords):
		return IntentEducational
	case containsAny(lower, transferKeywords):
		return IntentTransfer
	case containsAny(lower, scoringKeywords):
		return IntentScoring
	default:
		return IntentEducational
	}
}

func equalsAny(msg string, set []string) bool {
	lower := strings.ToLower(strings.TrimSpace(msg))
	for _, k := range set {
		if lower == k {
			return true
		}
	}
	return false
}

func containsAny(lower string, set []string) bool {
	for _, k := range set {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
