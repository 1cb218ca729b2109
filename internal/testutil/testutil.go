// Package testutil provides common test utilities and fakes for FarmFinBot tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BTreeMap/FarmFinBot/internal/models"
)

// FakeGenerator records prompts and answers with a fixed reply.
type FakeGenerator struct {
	mu      sync.Mutex
	Reply   string
	Prompts []string
	MaxLens []int
}

func (g *FakeGenerator) Generate(_ context.Context, prompt string, maxLength int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Prompts = append(g.Prompts, prompt)
	g.MaxLens = append(g.MaxLens, maxLength)
	return g.Reply
}

// LastPrompt returns the most recent prompt, or "".
func (g *FakeGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.Prompts) == 0 {
		return ""
	}
	return g.Prompts[len(g.Prompts)-1]
}

// FakeScorer records every questionnaire it scores.
type FakeScorer struct {
	mu          sync.Mutex
	Unavailable bool
	Result      string
	Calls       []map[string]string
}

func (s *FakeScorer) Available() bool {
	return !s.Unavailable
}

func (s *FakeScorer) CreditScore(_ context.Context, answers map[string]string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]string, len(answers))
	for k, v := range answers {
		cp[k] = v
	}
	s.Calls = append(s.Calls, cp)
	return s.Result
}

// ErrLogUnavailable is returned by MemoryLog when Fail is set.
var ErrLogUnavailable = errors.New("transaction log unavailable")

// MemoryLog is an in-memory transaction log.
type MemoryLog struct {
	mu      sync.Mutex
	Fail    bool
	Records []models.TransferRecord
}

func (l *MemoryLog) Append(_ context.Context, rec models.TransferRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Fail {
		return ErrLogUnavailable
	}
	l.Records = append(l.Records, rec)
	return nil
}

func (l *MemoryLog) Close() error { return nil }

// Len returns the number of recorded entries.
func (l *MemoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Records)
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t testing.TB, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeJSON decodes the recorder body into v.
func DecodeJSON(t testing.TB, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t testing.TB, method, url string, body interface{}) *http.Request {
	t.Helper()
	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
