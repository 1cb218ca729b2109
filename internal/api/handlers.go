package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/BTreeMap/FarmFinBot/internal/twiliowhatsapp"
)

// Status page texts.
const (
	statusActive    = "Chatbot Financiero Agrícola activo"
	statusVersion   = "1.0"
	loadedYes       = "Sí"
	loadedNo        = "No"
	generatorNoText = "No (Modo Fallback)"
	internalError   = "Error interno"
	resetMessage    = "Conversación reiniciada"
)

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := models.StatusResponse{
		Status:        statusActive,
		Version:       statusVersion,
		AIModelLoaded: generatorNoText,
		ScoringLoaded: loadedNo,
	}
	if s.assistant.GeneratorLoaded() {
		resp.AIModelLoaded = loadedYes
	}
	if s.assistant.ScoringLoaded() {
		resp.ScoringLoaded = loadedYes
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// chatHandler answers a JSON turn. Form posts are treated as webhooks.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		s.webhookHandler(w, r)
		return
	}

	var req models.ChatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = models.DefaultChatUserID
	}
	slog.Debug("Server.chatHandler: message received", "user_id", req.UserID)

	reply, err := s.assistant.Handle(r.Context(), req.Message, req.UserID)
	if err != nil {
		slog.Error("Server.chatHandler: turn failed", "user_id", req.UserID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.ChatResponse{
			Response: internalError,
			Error:    err.Error(),
		})
		return
	}
	writeJSONResponse(w, http.StatusOK, models.ChatResponse{Response: reply, SessionID: req.UserID})
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req models.ResetRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = models.DefaultChatUserID
	}

	if err := s.assistant.Reset(r.Context(), req.UserID); err != nil {
		slog.Error("Server.resetHandler: reset failed", "user_id", req.UserID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.ResetResponse{Message: resetMessage, SessionID: req.UserID})
}

// decodeJSON reads an optional JSON body into v and validates it. It writes
// the error response itself and returns false when the request is rejected.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		slog.Warn("Server.decodeJSON: failed to decode JSON", "path", r.URL.Path, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		slog.Warn("Server.decodeJSON: validation failed", "path", r.URL.Path, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return false
	}
	return true
}

// webhookHandler answers a Twilio WhatsApp form post with TwiML.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.webhookHandler: failed to parse form", "error", err)
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if s.opts.Validator != nil && !s.validSignature(r) {
		slog.Warn("Server.webhookHandler: signature rejected", "path", r.URL.Path)
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	body := strings.TrimSpace(r.PostForm.Get("Body"))
	if len(body) > models.MaxMessageLength {
		http.Error(w, models.ErrMessageTooLong.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	userID := r.PostForm.Get("From")
	if userID == "" {
		userID = models.DefaultTwilioUserID
	}
	messageID := r.PostForm.Get("MessageSid")

	if s.duplicate(w, messageID, userID) {
		return
	}

	if s.opts.AsyncReply {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			ctx, cancel := context.WithTimeout(context.Background(), DefaultAsyncReplyTimeout)
			defer cancel()
			reply := s.turn(ctx, body, userID, messageID)
			if err := s.opts.Sender.SendMessage(ctx, userID, reply); err != nil {
				slog.Error("Server.webhookHandler: async reply failed", "user_id", userID, "error", err)
			}
		}()
		writeTwiML(w, "")
		return
	}

	writeTwiML(w, s.turn(r.Context(), body, userID, messageID))
}

// duplicate reports whether messageID was already seen, answering the retry
// itself when it was.
func (s *Server) duplicate(w http.ResponseWriter, messageID, userID string) bool {
	if s.opts.Dedup == nil || messageID == "" {
		return false
	}
	first, err := s.opts.Dedup.RecordInbound(messageID, userID)
	if err != nil {
		slog.Error("Server.duplicate: dedup record failed", "message_id", messageID, "error", err)
		return false
	}
	if first {
		return false
	}

	slog.Info("Server.duplicate: retry received", "message_id", messageID, "user_id", userID)
	reply := ""
	if !s.opts.AsyncReply {
		cached, ok, err := s.opts.Dedup.ProcessedReply(messageID)
		if err != nil {
			slog.Error("Server.duplicate: cached reply lookup failed", "message_id", messageID, "error", err)
		}
		if ok {
			reply = cached
		}
	}
	writeTwiML(w, reply)
	return true
}

// turn runs one message through the assistant and caches the reply for retries.
func (s *Server) turn(ctx context.Context, body, userID, messageID string) string {
	reply, err := s.assistant.Handle(ctx, body, userID)
	if err != nil {
		slog.Error("Server.turn: turn failed", "user_id", userID, "error", err)
		return ApologyMessage
	}
	if s.opts.Dedup != nil && messageID != "" {
		if err := s.opts.Dedup.MarkProcessed(messageID, reply); err != nil {
			slog.Error("Server.turn: failed to cache reply", "message_id", messageID, "error", err)
		}
	}
	return reply
}

func (s *Server) validSignature(r *http.Request) bool {
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	url := s.opts.PublicBaseURL + r.URL.RequestURI()
	return s.opts.Validator.Validate(url, params, r.Header.Get(twiliowhatsapp.SignatureHeader))
}
