package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/crowdframe/internal/cache"
	"github.com/ppiankov/crowdframe/internal/model"
	"github.com/ppiankov/crowdframe/internal/worker"
)

func TestBingProvider_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			t.Errorf("Expected subscription key header test-key, got %s", r.Header.Get("Ocp-Apim-Subscription-Key"))
		}
		q := r.URL.Query()
		if q.Get("q") != "climate" || q.Get("count") != "10" || q.Get("offset") != "20" || q.Get("mkt") != "en-US" {
			t.Errorf("Unexpected query parameters: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"webPages":{"totalEstimatedMatches":2,"value":[
			{"id":"1","name":"Climate <b>facts</b>","url":"https://good.org/a","snippet":"ok"},
			{"id":"2","name":"Blocked","url":"https://www.politifact.com/x","snippet":"no"}
		]}}`))
	}))
	defer server.Close()

	p, err := NewBingProvider(Config{APIKey: "test-key", BaseURL: server.URL, Market: "en-US"})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := p.Search(context.Background(), "climate", 20, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	all := resp.Decode()
	if len(all) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(all))
	}
	if all[0].Parameters["id"] != "1" {
		t.Errorf("Expected id parameter 1, got %q", all[0].Parameters["id"])
	}

	filtered := resp.Filter([]string{"politifact.com"}).Decode()
	if len(filtered) != 1 || filtered[0].URL != "https://good.org/a" {
		t.Errorf("Expected only good.org result, got %+v", filtered)
	}
	if len(resp.Decode()) != 2 {
		t.Error("Filter should not modify the original response")
	}
}

func TestBraveProvider_PageOffset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "brave-key" {
			t.Errorf("Expected token header brave-key, got %s", r.Header.Get("X-Subscription-Token"))
		}
		if got := r.URL.Query().Get("offset"); got != "2" {
			t.Errorf("Expected page offset 2, got %s", got)
		}
		_, _ = w.Write([]byte(`{"web":{"results":[{"title":"T","url":"https://a.org","description":"D","age":"1d"}]}}`))
	}))
	defer server.Close()

	p, err := NewBraveProvider(Config{APIKey: "brave-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := p.Search(context.Background(), "q", 40, 20)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	results := resp.Decode()
	if len(results) != 1 || results[0].Snippet != "D" || results[0].Parameters["age"] != "1d" {
		t.Errorf("Unexpected results: %+v", results)
	}
}

func TestGoogleProvider_StartIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start") != "11" {
			t.Errorf("Expected start 11, got %s", q.Get("start"))
		}
		if q.Get("cx") != "engine" || q.Get("key") != "g-key" {
			t.Errorf("Unexpected credentials: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"items":[{"title":"G","link":"https://g.org","displayLink":"g.org","snippet":"S"}]}`))
	}))
	defer server.Close()

	p, err := NewGoogleProvider(Config{APIKey: "g-key", EngineID: "engine", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := p.Search(context.Background(), "q", 10, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	results := resp.Decode()
	if len(results) != 1 || results[0].URL != "https://g.org" {
		t.Errorf("Unexpected results: %+v", results)
	}
}

func TestGoogleProvider_RequiresEngineID(t *testing.T) {
	if _, err := NewGoogleProvider(Config{APIKey: "k"}); err == nil {
		t.Error("Expected error without engine id")
	}
}

func TestPubMedProvider_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			_, _ = w.Write([]byte(`{"esearchresult":{"count":"2","idlist":["111","222"]}}`))
		case "/esummary.fcgi":
			if got := r.URL.Query().Get("id"); got != "111,222" {
				t.Errorf("Expected ids 111,222, got %s", got)
			}
			_, _ = w.Write([]byte(`{"result":{"uids":["111","222"],
				"111":{"uid":"111","title":"First","source":"Nature","pubdate":"2020","authors":[{"name":"Doe J"},{"name":"Roe R"}]},
				"222":{"uid":"222","title":"Second","source":"Cell","pubdate":"2021","authors":[]}}}`))
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p, err := NewPubMedProvider(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := p.Search(context.Background(), "vaccine", 0, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	results := resp.Decode()
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].URL != "https://pubmed.ncbi.nlm.nih.gov/111/" {
		t.Errorf("Unexpected URL: %s", results[0].URL)
	}
	if results[0].Snippet != "Doe J, Roe R. Nature. 2020" {
		t.Errorf("Unexpected snippet: %s", results[0].Snippet)
	}
	if results[1].Snippet != "Cell. 2021" {
		t.Errorf("Unexpected snippet: %s", results[1].Snippet)
	}
}

func TestProvider_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer server.Close()

	p, _ := NewBingProvider(Config{APIKey: "k", BaseURL: server.URL})
	_, err := p.Search(context.Background(), "q", 0, 10)
	if err == nil {
		t.Fatal("Expected error for non-200 status")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("Expected status in error, got %v", err)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		cfg     Config
		name    string
		wantErr bool
	}{
		{Config{}, "fake", false},
		{Config{Provider: "FAKE"}, "fake", false},
		{Config{Provider: "bing", APIKey: "k"}, "bing", false},
		{Config{Provider: "bing"}, "", true},
		{Config{Provider: "pubmed"}, "pubmed", false},
		{Config{Provider: "altavista"}, "", true},
	}

	for _, tt := range tests {
		p, err := NewProvider(tt.cfg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Expected error for %+v", tt.cfg)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for %+v: %v", tt.cfg, err)
			continue
		}
		if p.Name() != tt.name {
			t.Errorf("Expected provider %s, got %s", tt.name, p.Name())
		}
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"  spaced   out ", "spaced out"},
		{"Climate <b>facts</b>", "Climate facts"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"<p>one</p>\n<p>two</p>", "one two"},
		{"<script>alert(1)</script>safe", "safe"},
	}

	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Errorf("StripHTML(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

type countingProvider struct {
	*FakeProvider
	calls     atomic.Int32
	lastCount int
}

func (p *countingProvider) Search(ctx context.Context, query string, offset, count int) (Response, error) {
	p.calls.Add(1)
	p.lastCount = count
	return p.FakeProvider.Search(ctx, query, offset, count)
}

func TestService_ClampsPageSize(t *testing.T) {
	p := &countingProvider{FakeProvider: NewFakeProvider(100)}
	svc := NewService(p, WithPageSize(500))

	if svc.PageSize() != 50 {
		t.Errorf("Expected page size clamped to 50, got %d", svc.PageSize())
	}

	results, err := svc.Search(context.Background(), "water", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 50 || p.lastCount != 50 {
		t.Errorf("Expected 50 results requested and returned, got %d/%d", p.lastCount, len(results))
	}
}

func TestService_StripsAndFilters(t *testing.T) {
	svc := NewService(NewFakeProvider(5), WithBlockedDomains([]string{"/water/3"}))

	results, err := svc.Search(context.Background(), "water", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected 4 results after filtering, got %d", len(results))
	}
	for _, r := range results {
		if strings.HasSuffix(r.URL, "/water/3") {
			t.Errorf("Blocked result present: %s", r.URL)
		}
		if strings.Contains(r.Name, "<b>") {
			t.Errorf("Expected markup stripped from name, got %q", r.Name)
		}
		if strings.Contains(r.Snippet, "&amp;") {
			t.Errorf("Expected entities decoded in snippet, got %q", r.Snippet)
		}
	}
}

func TestService_CachesResults(t *testing.T) {
	p := &countingProvider{FakeProvider: NewFakeProvider(30)}
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	svc := NewService(p, WithCache(c, time.Minute))

	first, err := svc.Search(context.Background(), "water", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	second, err := svc.Search(context.Background(), "water", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if p.calls.Load() != 1 {
		t.Errorf("Expected 1 provider call, got %d", p.calls.Load())
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("Expected cached results to match the original")
	}

	if _, err := svc.Search(context.Background(), "water", 10); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if p.calls.Load() != 2 {
		t.Errorf("Expected a different offset to miss the cache, got %d calls", p.calls.Load())
	}
}

func TestService_EmptyQuery(t *testing.T) {
	p := &countingProvider{FakeProvider: NewFakeProvider(10)}
	svc := NewService(p)

	results, err := svc.Search(context.Background(), "   ", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 || p.calls.Load() != 0 {
		t.Errorf("Expected no provider call for empty query, got %d results, %d calls", len(results), p.calls.Load())
	}
}

func TestService_RateLimitCancelled(t *testing.T) {
	limiter := worker.NewLimiter(0.001, 1)
	svc := NewService(NewFakeProvider(10), WithLimiter(limiter))

	if _, err := svc.Search(context.Background(), "first", 0); err != nil {
		t.Fatalf("First search should use the burst: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := svc.Search(ctx, "second", 0); err == nil {
		t.Error("Expected rate limit error once the burst is spent")
	}
}

func TestNewServiceFromConfig_ProviderRate(t *testing.T) {
	tests := []struct {
		name      string
		providers map[string]model.ProviderRate
		wantErr   bool
	}{
		{"default rate", nil, false},
		{"other provider throttled", map[string]model.ProviderRate{"bing": {RequestsPerSecond: 0.001, BurstSize: 1}}, false},
		{"fake throttled", map[string]model.ProviderRate{"fake": {RequestsPerSecond: 0.001, BurstSize: 1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := model.DefaultConfig()
			cfg.Cache.Enabled = false
			cfg.RateLimiting.Providers = tt.providers

			svc, err := NewServiceFromConfig(cfg, model.SearchEngineSettings{Provider: "fake"})
			if err != nil {
				t.Fatalf("NewServiceFromConfig failed: %v", err)
			}
			if _, err := svc.Search(context.Background(), "first", 0); err != nil {
				t.Fatalf("First search should use the burst: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err = svc.Search(ctx, "second", 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewServiceFromConfig_TaskOverrides(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.Search.BlockedDomains = []string{"snopes.com"}

	svc, err := NewServiceFromConfig(cfg, model.SearchEngineSettings{
		Provider:       "fake",
		PageSize:       5,
		BlockedDomains: []string{"politifact.com"},
	})
	if err != nil {
		t.Fatalf("NewServiceFromConfig failed: %v", err)
	}
	if svc.ProviderName() != "fake" {
		t.Errorf("Expected fake provider, got %s", svc.ProviderName())
	}
	if svc.PageSize() != 5 {
		t.Errorf("Expected page size 5, got %d", svc.PageSize())
	}
	if len(svc.blocked) != 2 {
		t.Errorf("Expected 2 blocked domains, got %v", svc.blocked)
	}

	if _, err := NewServiceFromConfig(cfg, model.SearchEngineSettings{Provider: "nope"}); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
