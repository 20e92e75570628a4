package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ppiankov/crowdframe/internal/model"
)

// GoogleProvider queries the Google Custom Search JSON API
type GoogleProvider struct {
	endpoint   string
	apiKey     string
	engineID   string
	httpClient *http.Client
}

// Google API structures
type googleResponse struct {
	Items []googleItem `json:"items"`
}

type googleItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	DisplayLink string `json:"displayLink"`
	Snippet     string `json:"snippet"`
}

// NewGoogleProvider creates a new Google provider
func NewGoogleProvider(cfg Config) (*GoogleProvider, error) {
	if cfg.APIKey == "" || cfg.EngineID == "" {
		return nil, fmt.Errorf("google API key and engine id are required")
	}
	return &GoogleProvider{
		endpoint:   endpoint(cfg, "https://www.googleapis.com/customsearch/v1"),
		apiKey:     cfg.APIKey,
		engineID:   cfg.EngineID,
		httpClient: newHTTPClient(cfg),
	}, nil
}

func (p *GoogleProvider) Name() string     { return "google" }
func (p *GoogleProvider) MaxPageSize() int { return 10 }

// Search maps the zero-based offset to Google's one-based start index
func (p *GoogleProvider) Search(ctx context.Context, query string, offset, count int) (Response, error) {
	params := url.Values{}
	params.Set("key", p.apiKey)
	params.Set("cx", p.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(count))
	params.Set("start", strconv.Itoa(offset+1))

	var resp googleResponse
	if err := getJSON(ctx, p.httpClient, p.endpoint, params, nil, &resp); err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}
	return &resp, nil
}

func (r *googleResponse) Filter(blocked []string) Response {
	out := &googleResponse{}
	for _, it := range r.Items {
		if !isBlocked(blocked, it.Link, it.Snippet) {
			out.Items = append(out.Items, it)
		}
	}
	return out
}

func (r *googleResponse) Decode() []model.SearchResult {
	results := make([]model.SearchResult, 0, len(r.Items))
	for _, it := range r.Items {
		results = append(results, model.SearchResult{
			URL:        it.Link,
			Name:       it.Title,
			Snippet:    it.Snippet,
			Parameters: map[string]string{"displayLink": it.DisplayLink},
		})
	}
	return results
}
