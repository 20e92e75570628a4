package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ppiankov/crowdframe/internal/model"
)

// BraveProvider queries the Brave Search API
type BraveProvider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Brave API structures
type braveResponse struct {
	Web struct {
		Results []braveResult `json:"results"`
	} `json:"web"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Age         string `json:"age,omitempty"`
	Language    string `json:"language,omitempty"`
}

// NewBraveProvider creates a new Brave provider
func NewBraveProvider(cfg Config) (*BraveProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("brave API key is required")
	}
	return &BraveProvider{
		endpoint:   endpoint(cfg, "https://api.search.brave.com/res/v1/web/search"),
		apiKey:     cfg.APIKey,
		httpClient: newHTTPClient(cfg),
	}, nil
}

func (p *BraveProvider) Name() string     { return "brave" }
func (p *BraveProvider) MaxPageSize() int { return 20 }

// Search converts the result offset to Brave's page offset
func (p *BraveProvider) Search(ctx context.Context, query string, offset, count int) (Response, error) {
	page := 0
	if count > 0 {
		page = offset / count
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("offset", strconv.Itoa(page))

	var resp braveResponse
	if err := getJSON(ctx, p.httpClient, p.endpoint, params, map[string]string{
		"X-Subscription-Token": p.apiKey,
	}, &resp); err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	return &resp, nil
}

func (r *braveResponse) Filter(blocked []string) Response {
	out := *r
	out.Web.Results = nil
	for _, v := range r.Web.Results {
		if !isBlocked(blocked, v.URL, v.Description) {
			out.Web.Results = append(out.Web.Results, v)
		}
	}
	return &out
}

func (r *braveResponse) Decode() []model.SearchResult {
	results := make([]model.SearchResult, 0, len(r.Web.Results))
	for _, v := range r.Web.Results {
		results = append(results, model.SearchResult{
			URL:     v.URL,
			Name:    v.Title,
			Snippet: v.Description,
			Parameters: map[string]string{
				"age":      v.Age,
				"language": v.Language,
			},
		})
	}
	return results
}
