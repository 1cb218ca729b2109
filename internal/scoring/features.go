package scoring

import (
	"math"
	"strconv"
	"strings"
)

// Feature is one named classifier input.
type Feature struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Features is the ordered classifier input vector.
type Features []Feature

// Map returns the features keyed by name.
func (f Features) Map() map[string]float64 {
	out := make(map[string]float64, len(f))
	for _, x := range f {
		out[x.Name] = x.Value
	}
	return out
}

// Values returns the feature values in order.
func (f Features) Values() []float64 {
	out := make([]float64, len(f))
	for i, x := range f {
		out[i] = x.Value
	}
	return out
}

// BuildFeatures converts raw questionnaire answers into the ordered feature
// vector. Numeric answers that are missing or unparsable become 0; categorical
// labels that are not options become -1.
func BuildFeatures(answers map[string]string) Features {
	out := make(Features, 0, len(FeatureOrder))
	for _, key := range FeatureOrder {
		q, _ := QuestionByKey(key)
		raw := answers[key]
		var v float64
		if q.Type == Categorical {
			v = -1
			if code, ok := q.Code(raw); ok {
				v = float64(code)
			}
		} else {
			v, _ = ParseNumber(raw)
		}
		out = append(out, Feature{Name: key, Value: v})
	}
	return out
}

// ParseNumber parses a finite decimal number, ignoring surrounding space.
func ParseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
