package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/crowdframe/internal/ingest"
	"github.com/ppiankov/crowdframe/internal/search"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingWriter struct{ err error }

func (w failingWriter) Write(ctx context.Context, rec ingest.Record) error { return w.err }

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp Response
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func TestHealth(t *testing.T) {
	s := New(nil, nil, "")
	w, _ := do(t, s.Handler(), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("Expected status ok, got %s", w.Body.String())
	}
}

func TestPostLogStoresRecord(t *testing.T) {
	store := ingest.NewMemoryStore()
	s := New(ingest.NewWriter(store, "crowdframe", 3), nil, "")

	body := `{"sequence":7,"task":"fact-check","batch":"batch-1","worker":"W1","type":"movement","details":{"from":0,"to":1}}`
	w, resp := do(t, s.Handler(), http.MethodPost, "/api/v1/log", body)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp.Code != 0 {
		t.Errorf("Expected code 0, got %d", resp.Code)
	}

	items := store.Items(ingest.TableName("crowdframe", "fact-check", "batch-1"))
	if len(items) != 1 {
		t.Fatalf("Expected 1 stored item, got %d", len(items))
	}
	if items[0].Sequence != "7" {
		t.Errorf("Expected sequence 7, got %q", items[0].Sequence)
	}
	if items[0].Details != `{"from":0,"to":1}` {
		t.Errorf("Expected serialized details, got %q", items[0].Details)
	}
	if items[0].ServerTime == 0 {
		t.Error("Expected server_time to be stamped")
	}
}

func TestPostLogRejectsBadInput(t *testing.T) {
	s := New(ingest.NewWriter(ingest.NewMemoryStore(), "crowdframe", 3), nil, "")

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"sequence":`},
		{"missing worker", `{"sequence":"1","task":"t","batch":"b"}`},
		{"missing sequence", `{"task":"t","batch":"b","worker":"W"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, s.Handler(), http.MethodPost, "/api/v1/log", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Code)
			}
			if resp.Code != -1 {
				t.Errorf("Expected code -1, got %d", resp.Code)
			}
		})
	}
}

func TestPostLogDeliveryFailure(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"delivery failed", fmt.Errorf("%w: W/1 after 3 attempts", ingest.ErrDeliveryFailed), http.StatusBadGateway},
		{"other error", errors.New("encode details"), http.StatusInternalServerError},
	}
	body := `{"sequence":"1","task":"t","batch":"b","worker":"W"}`
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(failingWriter{err: tt.err}, nil, "")
			w, _ := do(t, s.Handler(), http.MethodPost, "/api/v1/log", body)
			if w.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestPostLogDisabled(t *testing.T) {
	s := New(nil, nil, "")
	w, _ := do(t, s.Handler(), http.MethodPost, "/api/v1/log", `{}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestSearch(t *testing.T) {
	svc := search.NewService(search.NewFakeProvider(12), search.WithPageSize(5))
	s := New(nil, svc, "")

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=green+sky&offset=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Code int         `json:"code"`
		Data searchReply `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Expected JSON body, got error: %v", err)
	}
	if resp.Data.Provider != "fake" {
		t.Errorf("Expected provider fake, got %q", resp.Data.Provider)
	}
	if resp.Data.Count != 5 {
		t.Errorf("Expected count 5, got %d", resp.Data.Count)
	}
	if len(resp.Data.Results) != 2 {
		t.Fatalf("Expected 2 results past offset 10 of 12, got %d", len(resp.Data.Results))
	}
	if resp.Data.Results[0].URL != "https://example.org/green-sky/10" {
		t.Errorf("Expected first URL at rank 11, got %q", resp.Data.Results[0].URL)
	}
	if strings.Contains(resp.Data.Results[0].Name, "<b>") {
		t.Errorf("Expected HTML stripped from name, got %q", resp.Data.Results[0].Name)
	}
}

func TestSearchRejectsBadInput(t *testing.T) {
	s := New(nil, search.NewService(search.NewFakeProvider(0)), "")

	tests := []struct {
		target string
		status int
	}{
		{"/api/v1/search", http.StatusBadRequest},
		{"/api/v1/search?q=%20", http.StatusBadRequest},
		{"/api/v1/search?q=sky&offset=-1", http.StatusBadRequest},
		{"/api/v1/search?q=sky&offset=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w, _ := do(t, s.Handler(), http.MethodGet, tt.target, "")
		if w.Code != tt.status {
			t.Errorf("%s: Expected %d, got %d", tt.target, tt.status, w.Code)
		}
	}
}

func TestRecoveryReturnsJSON(t *testing.T) {
	s := New(nil, nil, "")
	s.engine.GET("/boom", func(c *gin.Context) { panic("boom") })

	w, resp := do(t, s.Handler(), http.MethodGet, "/boom", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	if resp.Message != "internal server error" {
		t.Errorf("Expected internal server error, got %q", resp.Message)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := New(nil, nil, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.ListenAndServe(ctx, "127.0.0.1:0"); err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
}
