package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/BTreeMap/FarmFinBot/internal/flow"
	"github.com/BTreeMap/FarmFinBot/internal/metrics"
	"github.com/BTreeMap/FarmFinBot/internal/models"
	"github.com/BTreeMap/FarmFinBot/internal/store"
	"github.com/BTreeMap/FarmFinBot/internal/testutil"
	"github.com/BTreeMap/FarmFinBot/internal/twiliowhatsapp"
)

// fakeAssistant echoes messages and counts turns.
type fakeAssistant struct {
	mu        sync.Mutex
	calls     []string
	resets    []string
	err       error
	panicOn   string
	generator bool
	scoring   bool
}

func (f *fakeAssistant) Handle(_ context.Context, message, userID string) (string, error) {
	if message == f.panicOn && f.panicOn != "" {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID+"|"+message)
	if f.err != nil {
		return "", f.err
	}
	return "eco: " + message, nil
}

func (f *fakeAssistant) Reset(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, userID)
	return f.err
}

func (f *fakeAssistant) GeneratorLoaded() bool { return f.generator }
func (f *fakeAssistant) ScoringLoaded() bool   { return f.scoring }

func (f *fakeAssistant) turns() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type stubValidator struct{ ok bool }

func (v stubValidator) Validate(string, map[string]string, string) bool { return v.ok }

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func formRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestStatusHandler(t *testing.T) {
	s := NewServer(&fakeAssistant{generator: true})
	rr := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "status")

	var resp models.StatusResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Status != "Chatbot Financiero Agrícola activo" || resp.Version != "1.0" {
		t.Errorf("unexpected status %+v", resp)
	}
	if resp.AIModelLoaded != "Sí" || resp.ScoringLoaded != "No" {
		t.Errorf("unexpected loaded flags %+v", resp)
	}

	rr = serve(NewServer(&fakeAssistant{scoring: true}), httptest.NewRequest(http.MethodGet, "/", nil))
	testutil.DecodeJSON(t, rr, &resp)
	if resp.AIModelLoaded != "No (Modo Fallback)" || resp.ScoringLoaded != "Sí" {
		t.Errorf("unexpected loaded flags %+v", resp)
	}
}

func TestChatHandler(t *testing.T) {
	a := &fakeAssistant{}
	s := NewServer(a)

	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/chat", map[string]string{"message": "hola", "user_id": "u1"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "chat")
	var resp models.ChatResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Response != "eco: hola" || resp.SessionID != "u1" {
		t.Errorf("unexpected response %+v", resp)
	}

	rr = serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/chat", map[string]string{"message": "2"}))
	testutil.DecodeJSON(t, rr, &resp)
	if resp.SessionID != models.DefaultChatUserID {
		t.Errorf("expected default user, got %q", resp.SessionID)
	}
}

func TestChatHandler_BadRequests(t *testing.T) {
	s := NewServer(&fakeAssistant{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(s, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "malformed JSON")

	long := strings.Repeat("a", models.MaxMessageLength+1)
	rr = serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/chat", map[string]string{"message": long}))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "message too long")

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/chat", nil))
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "GET /chat")
}

func TestChatHandler_InternalError(t *testing.T) {
	s := NewServer(&fakeAssistant{err: errors.New("redis down")})
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/chat", map[string]string{"message": "info"}))
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "store failure")

	var resp models.ChatResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Response != "Error interno" || resp.Error != "redis down" {
		t.Errorf("unexpected error payload %+v", resp)
	}
}

func TestChatHandler_FormIsWebhook(t *testing.T) {
	a := &fakeAssistant{}
	rr := serve(NewServer(a), formRequest("/chat", url.Values{"Body": {"hola"}, "From": {"whatsapp:+5215550001"}}))
	if ct := rr.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("expected TwiML, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "<Message>eco: hola</Message>") {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestResetHandler(t *testing.T) {
	a := &fakeAssistant{}
	s := NewServer(a)

	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/reset", map[string]string{"user_id": "u9"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "reset")
	var resp models.ResetResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Message != "Conversación reiniciada" || resp.SessionID != "u9" {
		t.Errorf("unexpected reset response %+v", resp)
	}

	rr = serve(s, httptest.NewRequest(http.MethodPost, "/reset", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "reset without body")
	if len(a.resets) != 2 || a.resets[1] != models.DefaultChatUserID {
		t.Errorf("unexpected resets %v", a.resets)
	}
}

func TestWebhookHandler(t *testing.T) {
	a := &fakeAssistant{}
	s := NewServer(a)

	rr := serve(s, formRequest("/webhook", url.Values{"Body": {"  2  "}, "From": {"whatsapp:+5215550001"}}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook")
	if !strings.Contains(rr.Body.String(), "<Message>eco: 2</Message>") {
		t.Errorf("unexpected TwiML %s", rr.Body.String())
	}
	if a.calls[0] != "whatsapp:+5215550001|2" {
		t.Errorf("unexpected call %q", a.calls[0])
	}

	serve(s, formRequest("/webhook", url.Values{"Body": {"hola"}}))
	if a.calls[1] != models.DefaultTwilioUserID+"|hola" {
		t.Errorf("expected default twilio user, got %q", a.calls[1])
	}
}

func TestWebhookHandler_FailureIsApology(t *testing.T) {
	s := NewServer(&fakeAssistant{err: errors.New("store down")})
	rr := serve(s, formRequest("/webhook", url.Values{"Body": {"info"}}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook failure")
	if !strings.Contains(rr.Body.String(), ApologyMessage) {
		t.Errorf("expected apology, got %s", rr.Body.String())
	}
}

func TestWebhookHandler_Signature(t *testing.T) {
	a := &fakeAssistant{}
	form := url.Values{"Body": {"info"}}

	rr := serve(NewServer(a, WithSignatureValidation(stubValidator{ok: false}, "https://farmfin.example.com/")), formRequest("/webhook", form))
	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "bad signature")
	if a.turns() != 0 {
		t.Error("rejected webhook must not reach the assistant")
	}

	rr = serve(NewServer(a, WithSignatureValidation(stubValidator{ok: true}, "https://farmfin.example.com")), formRequest("/webhook", form))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "good signature")
}

func TestWebhookHandler_DedupRetries(t *testing.T) {
	a := &fakeAssistant{}
	s := NewServer(a, WithDedup(store.NewInMemoryDedup()))
	form := url.Values{"Body": {"3"}, "From": {"u1"}, "MessageSid": {"SM123"}}

	first := serve(s, formRequest("/webhook", form)).Body.String()
	retry := serve(s, formRequest("/webhook", form)).Body.String()
	if first != retry {
		t.Errorf("retry should replay the cached reply:\n%s\n%s", first, retry)
	}
	if a.turns() != 1 {
		t.Errorf("retry must not advance the conversation, got %d turns", a.turns())
	}

	form.Set("MessageSid", "SM124")
	serve(s, formRequest("/webhook", form))
	if a.turns() != 2 {
		t.Errorf("new message should be processed, got %d turns", a.turns())
	}
}

func TestWebhookHandler_AsyncReply(t *testing.T) {
	a := &fakeAssistant{}
	sender := twiliowhatsapp.NewMockClient()
	s := NewServer(a, WithAsyncReply(sender))

	rr := serve(s, formRequest("/webhook", url.Values{"Body": {"info"}, "From": {"whatsapp:+5215550001"}}))
	if strings.Contains(rr.Body.String(), "<Message") {
		t.Errorf("async webhook should ack with an empty response: %s", rr.Body.String())
	}
	s.inflight.Wait()

	sent := sender.Sent()
	if len(sent) != 1 || sent[0].To != "whatsapp:+5215550001" || sent[0].Body != "eco: info" {
		t.Errorf("unexpected async sends %+v", sent)
	}
}

func TestRecoverer(t *testing.T) {
	s := NewServer(&fakeAssistant{panicOn: "boom"})

	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/chat", map[string]string{"message": "boom"}))
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "panic on /chat")
	var resp models.APIResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Status != string(models.APIStatusError) {
		t.Errorf("unexpected envelope %+v", resp)
	}

	rr = serve(s, formRequest("/webhook", url.Values{"Body": {"boom"}}))
	if !strings.Contains(rr.Body.String(), ApologyMessage) {
		t.Errorf("expected apology TwiML, got %s", rr.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.Turn("educational")
	rr := serve(NewServer(&fakeAssistant{}, WithMetrics(m)), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "metrics")
	if !strings.Contains(rr.Body.String(), "farmfin_turns_total") {
		t.Errorf("metrics missing turn counter:\n%s", rr.Body.String())
	}

	rr = serve(NewServer(&fakeAssistant{}), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "metrics disabled")
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := NewServer(&fakeAssistant{}, WithAddr("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}

// A full conversation through the real router over the webhook.
func TestWebhookTransferConversation(t *testing.T) {
	log := &testutil.MemoryLog{}
	assistant := flow.NewAssistant(flow.Dependencies{Log: log})
	s := NewServer(assistant)

	var last string
	for _, msg := range []string{"2", "ACC001", "ACC002", "250", "sí"} {
		rr := serve(s, formRequest("/webhook", url.Values{"Body": {msg}, "From": {"whatsapp:+5215550001"}}))
		last = rr.Body.String()
	}
	if !strings.Contains(last, "Transferencia Exitosa") || !strings.Contains(last, "ACC001: $750.00") {
		t.Errorf("unexpected final reply %s", last)
	}
	if log.Len() != 1 || log.Records[0].UserID != "whatsapp:+5215550001" {
		t.Errorf("unexpected log %+v", log.Records)
	}
}
