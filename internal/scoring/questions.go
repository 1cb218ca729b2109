// Package scoring holds the credit-profile questionnaire and the classifier
// that turns a completed questionnaire into a credit class.
package scoring

import (
	"fmt"
	"strings"
)

// QuestionType selects how an answer is validated.
type QuestionType string

const (
	Numeric     QuestionType = "numeric"
	Categorical QuestionType = "categorical"
	BuroSpecial QuestionType = "buro_special"
)

// BuroUnknown is stored when the user does not know their bureau score.
const BuroUnknown = "-1"

// Option is one choice of a categorical question.
type Option struct {
	Label string
	Code  int
}

// Question is one item of the questionnaire.
type Question struct {
	Key     string
	Text    string
	Type    QuestionType
	Options []Option
}

// Code returns the feature code of label, or false if the label is not an option.
func (q Question) Code(label string) (int, bool) {
	for _, o := range q.Options {
		if o.Label == label {
			return o.Code, true
		}
	}
	return 0, false
}

// Format renders the question as sent to the user. Categorical questions list
// their options numbered from 1.
func (q Question) Format() string {
	if q.Type != Categorical {
		return q.Text
	}
	var b strings.Builder
	b.WriteString(q.Text)
	b.WriteString("\n\n")
	for i, o := range q.Options {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, o.Label)
	}
	b.WriteString("\n\nResponde solo con el número de la opción.")
	return b.String()
}

func options(labels ...string) []Option {
	out := make([]Option, len(labels))
	for i, l := range labels {
		out[i] = Option{Label: l, Code: i}
	}
	return out
}

var (
	stateOptions = options(
		"Chiapas", "Puebla", "Guanajuato", "Sonora", "Jalisco",
		"Veracruz", "Oaxaca", "Michoacan", "Sinaloa", "Hidalgo",
		"Ciudad de México", "Nuevo León", "Guerrero", "Tamaulipas",
		"Zacatecas", "San Luis Potosí", "Nayarit", "Otros",
	)
	businessOptions = options(
		"Ganaderia - Aves", "Otras actividades pecuarias", "Hortalizas",
		"Granos", "Ganaderia - Bovinos", "Frutales", "Ganaderia - Porcinos",
		"Cultivos industriales/perennes", "Agricultura mixta", "Servicios y transformacion",
	)
	sizeOptions      = options("Pequeño", "Mediano", "Grande")
	incomeOptions    = options("Constante", "Estacional")
	schoolingOptions = options("Primaria", "Secundaria", "Preparatoria", "Universidad", "Sin estudios")
)

// Questions is the fixed questionnaire, asked in order.
var Questions = []Question{
	{Key: "Edad", Text: "1/11: ¿Cuál es tu edad?", Type: Numeric},
	{Key: "Ubicacion_Estado", Text: "2/11: ¿En qué estado vives?", Type: Categorical, Options: stateOptions},
	{Key: "Dependientes_Economicos", Text: "3/11: ¿Cuántas personas dependen económicamente de ti?", Type: Numeric},
	{Key: "Tipo_Negocio", Text: "4/11: ¿Cuál es tu principal actividad?", Type: Categorical, Options: businessOptions},
	{Key: "Tamano_Hectareas", Text: "5/11: ¿Cuántas hectáreas trabajas?", Type: Numeric},
	{Key: "Tamano_Operacion", Text: "6/11: ¿Consideras tu operación Pequeña, Mediana o Grande?", Type: Categorical, Options: sizeOptions},
	{Key: "Frecuencia_Ingresos", Text: "7/11: ¿Tus ingresos son todo el año (Constante) o solo por temporadas (Estacional)?", Type: Categorical, Options: incomeOptions},
	{Key: "Ingresos_Anuales_Estimados", Text: "8/11: ¿Cuál es tu ingreso anual estimado? (Escribe solo el número, ej. 50000)", Type: Numeric},
	{Key: "Escolaridad", Text: "9/11: ¿Cuál es tu último nivel de estudios?", Type: Categorical, Options: schoolingOptions},
	{Key: "Anos_Experiencia", Text: "10/11: ¿Cuántos años de experiencia tienes en el campo?", Type: Numeric},
	{Key: "Score_Buro_Credito", Text: "11/11: ¿Sabes tu Score de Buró de Crédito actual? (Escribe el número, o 'No' si no lo sabes)", Type: BuroSpecial},
}

// FeatureOrder is the column order the classifier expects.
var FeatureOrder = []string{
	"Edad", "Ubicacion_Estado", "Dependientes_Economicos", "Tipo_Negocio",
	"Tamano_Hectareas", "Tamano_Operacion", "Frecuencia_Ingresos",
	"Ingresos_Anuales_Estimados", "Escolaridad", "Anos_Experiencia",
	"Score_Buro_Credito",
}

// QuestionByKey looks up a question by feature key.
func QuestionByKey(key string) (Question, bool) {
	for _, q := range Questions {
		if q.Key == key {
			return q, true
		}
	}
	return Question{}, false
}
