package flow

// User-facing texts.
const (
	GreetingMessage = "¡Hola! Soy tu asistente financiero agrícola. 🌱\n\nEstoy aquí para ayudarte con:\n\n" +
		"1.  Educación financiera\n" +
		"2.  Realizar transferencias\n" +
		"3.  Calcular mi perfil de crédito"

	SomethingWentWrongMessage = "Algo salió mal. Volviendo al menú principal."

	// educational
	educationalPersona = "Eres un especialista en educación financiera para agricultores. " +
		"Proporciona información práctica, clara y aplicable al contexto agrícola. " +
		"Sé empático y alentador."
	menuEducationPrompt     = "Háblame de educación financiera"
	genericFallbackResponse = "Puedo ayudarte con ahorro, créditos, seguros e inversiones. ¿Sobre qué tema quieres saber?"

	// scoring
	ScoringUnavailableMessage = "Lo siento, el servicio de cálculo de crédito no está disponible."
	ScoringCancelledMessage   = "Cálculo de perfil cancelado. Volviendo al menú principal."
	invalidOptionPrefix       = "Opción no válida.\n\n"
	invalidAnswerPrefix       = "Respuesta inválida.\n\n"

	// transfer
	TransferStartMessage     = "Iniciemos una transferencia.\n\n¿Desde qué número de cuenta deseas transferir? (Ej. %s)"
	TransferCancelledMessage = "Transferencia cancelada. Volviendo al menú principal."
	transferDeclinedMessage  = "Transferencia cancelada.\n\nResponde 'hola' para volver al menú."
	accountNotFoundMessage   = "Cuenta %s no encontrada. Por favor, usa %s."
	askDestinationMessage    = "Perfecto. ¿A qué número de cuenta deseas transferir?"
	sameAccountMessage       = "No puedes transferir a la misma cuenta. Por favor, ingresa un número de cuenta diferente:"
	askAmountMessage         = "¿Qué monto deseas transferir?\n(Saldo disponible: $%s)"
	invalidAmountMessage     = "Monto inválido. Por favor, ingresa un número (ej: 100 o 100.50):"
	nonPositiveAmountMessage = "El monto debe ser mayor a cero. Por favor, ingresa un monto válido:"
	insufficientFundsMessage = "Fondos insuficientes. Saldo disponible: $%s\nPor favor, ingresa un monto válido:"
	confirmPromptMessage     = "Por favor, responde 'SÍ' para confirmar o 'NO' para cancelar:"
	transferSummaryMessage   = "\nResumen de la Transferencia\n" +
		"Desde: %s (%s)\n" +
		"Para: %s (%s)\n" +
		"Monto: $%s\n" +
		"━━━━━━━━━━━━━━━━━━━━━\n\n" +
		"Por favor, confirma esta transferencia.\nResponde SÍ para confirmar o NO para cancelar."
	transferSuccessMessage = "✅ Transferencia Exitosa\n\n" +
		"Se transfirieron $%s de %s a %s\n\n" +
		"Saldos Actualizados:\n" +
		"• %s: $%s\n" +
		"• %s: $%s\n" +
		"\n\nResponde 'menu' para volver al menú."
)

// fallbackResponses are served when no text generator is configured, checked in order.
var fallbackResponses = []struct {
	keyword  string
	response string
}{
	{"ahorro", "Para ahorrar como agricultor, te recomiendo separar al menos el 10% de cada venta. Crea un fondo para emergencias y otro para inversiones en tu tierra."},
	{"crédito", "Los créditos agrícolas suelen requerir: historial de producción, plan de negocio y garantías. Existen créditos de avío para insumos y refaccionarios para inversiones."},
	{"seguro", "Los seguros agrícolas protegen contra pérdidas por clima y plagas. Consulta con tu cooperativa sobre seguros de cosecha y de ingresos."},
	{"inversión", "Invertir en agricultura puede incluir: mejoras en riego, maquinaria eficiente, o diversificación de cultivos. Comienza con inversiones pequeñas y escalables."},
}
