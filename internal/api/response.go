// Package api provides HTTP response utilities for FarmFinBot.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/BTreeMap/FarmFinBot/internal/twiliowhatsapp"
)

// ApologyMessage is sent over the webhook when a turn fails.
const ApologyMessage = "Lo siento, hubo un error procesando tu mensaje."

// Pre-marshaled fallback responses to avoid runtime encoding failures
var (
	fallbackErrorResponse []byte
	fallbackTwiML         string
)

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
	fallbackTwiML, err = twiliowhatsapp.RenderReply(ApologyMessage)
	if err != nil {
		panic(fmt.Sprintf("Failed to render fallback TwiML at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal first so encoding errors surface before headers are written
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeTwiML renders body as a TwiML reply.
func writeTwiML(w http.ResponseWriter, body string) {
	out, err := twiliowhatsapp.RenderReply(body)
	if err != nil {
		slog.Error("Server.writeTwiML: failed to render TwiML", "error", err)
		out = fallbackTwiML
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, writeErr := w.Write([]byte(out)); writeErr != nil {
		slog.Error("Server.writeTwiML: failed to write TwiML", "error", writeErr)
	}
}

// recoverer turns a panic in any handler into a generic error payload.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				if rec != nil {
					panic(rec)
				}
				return
			}
			slog.Error("Server.recoverer: handler panicked", "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
			if strings.HasPrefix(r.URL.Path, "/webhook") {
				writeTwiML(w, ApologyMessage)
				return
			}
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
		}()
		next.ServeHTTP(w, r)
	})
}
