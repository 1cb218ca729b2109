package testutil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/FarmFinBot/internal/models"
)

func TestFakeGenerator(t *testing.T) {
	g := &FakeGenerator{Reply: "ok"}
	if g.LastPrompt() != "" {
		t.Error("expected empty last prompt")
	}
	if out := g.Generate(context.Background(), "p1", 400); out != "ok" {
		t.Errorf("unexpected reply %q", out)
	}
	if g.LastPrompt() != "p1" || g.MaxLens[0] != 400 {
		t.Errorf("call not recorded: %+v", g)
	}
}

func TestFakeScorerCopiesAnswers(t *testing.T) {
	s := &FakeScorer{Result: "r"}
	answers := map[string]string{"Edad": "30"}
	s.CreditScore(context.Background(), answers)
	answers["Edad"] = "99"
	if s.Calls[0]["Edad"] != "30" {
		t.Error("recorded answers must not alias the caller's map")
	}
	if !s.Available() {
		t.Error("scorer should be available by default")
	}
}

func TestMemoryLog(t *testing.T) {
	l := &MemoryLog{}
	if err := l.Append(context.Background(), models.TransferRecord{ID: "1"}); err != nil {
		t.Fatal(err)
	}
	l.Fail = true
	if err := l.Append(context.Background(), models.TransferRecord{ID: "2"}); !errors.Is(err, ErrLogUnavailable) {
		t.Errorf("expected ErrLogUnavailable, got %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 record, got %d", l.Len())
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/chat", map[string]string{"message": "hola"})
	if req.Header.Get("Content-Type") != "application/json" {
		t.Error("expected JSON content type")
	}
	body, _ := io.ReadAll(req.Body)
	if string(body) != `{"message":"hola"}` {
		t.Errorf("unexpected body %s", body)
	}

	rr := httptest.NewRecorder()
	rr.WriteString(`{"response":"x"}`)
	var out map[string]string
	DecodeJSON(t, rr, &out)
	if out["response"] != "x" {
		t.Errorf("unexpected decode %v", out)
	}
	AssertHTTPStatus(t, http.StatusOK, rr.Code, "recorder default")
}
