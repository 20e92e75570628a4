package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ppiankov/crowdframe/internal/model"
)

// BingProvider queries the Bing Web Search API
type BingProvider struct {
	endpoint   string
	apiKey     string
	market     string
	httpClient *http.Client
}

// Bing API structures
type bingResponse struct {
	WebPages struct {
		TotalEstimatedMatches int          `json:"totalEstimatedMatches"`
		Value                 []bingResult `json:"value"`
	} `json:"webPages"`
}

type bingResult struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	URL             string `json:"url"`
	DisplayURL      string `json:"displayUrl"`
	Snippet         string `json:"snippet"`
	DateLastCrawled string `json:"dateLastCrawled"`
	Language        string `json:"language"`
}

// NewBingProvider creates a new Bing provider
func NewBingProvider(cfg Config) (*BingProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("bing API key is required")
	}
	return &BingProvider{
		endpoint:   endpoint(cfg, "https://api.bing.microsoft.com/v7.0/search"),
		apiKey:     cfg.APIKey,
		market:     cfg.Market,
		httpClient: newHTTPClient(cfg),
	}, nil
}

func (p *BingProvider) Name() string     { return "bing" }
func (p *BingProvider) MaxPageSize() int { return 50 }

func (p *BingProvider) Search(ctx context.Context, query string, offset, count int) (Response, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))
	params.Set("offset", strconv.Itoa(offset))
	if p.market != "" {
		params.Set("mkt", p.market)
	}

	var resp bingResponse
	if err := getJSON(ctx, p.httpClient, p.endpoint, params, map[string]string{
		"Ocp-Apim-Subscription-Key": p.apiKey,
	}, &resp); err != nil {
		return nil, fmt.Errorf("bing: %w", err)
	}
	return &resp, nil
}

func (r *bingResponse) Filter(blocked []string) Response {
	out := *r
	out.WebPages.Value = nil
	for _, v := range r.WebPages.Value {
		if !isBlocked(blocked, v.URL, v.Snippet) {
			out.WebPages.Value = append(out.WebPages.Value, v)
		}
	}
	return &out
}

func (r *bingResponse) Decode() []model.SearchResult {
	results := make([]model.SearchResult, 0, len(r.WebPages.Value))
	for _, v := range r.WebPages.Value {
		results = append(results, model.SearchResult{
			URL:     v.URL,
			Name:    v.Name,
			Snippet: v.Snippet,
			Parameters: map[string]string{
				"id":              v.ID,
				"displayUrl":      v.DisplayURL,
				"dateLastCrawled": v.DateLastCrawled,
				"language":        v.Language,
			},
		})
	}
	return results
}
