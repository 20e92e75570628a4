// Package search queries web search engines for the embedded search
// widget and normalizes their responses.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/crowdframe/internal/model"
	"github.com/ppiankov/crowdframe/internal/util"
)

// Provider defines the interface for search engine clients
type Provider interface {
	// Name returns the provider name
	Name() string

	// MaxPageSize is the largest page the engine serves in one call
	MaxPageSize() int

	// Search fetches one page of raw results. offset counts results, not pages.
	Search(ctx context.Context, query string, offset, count int) (Response, error)
}

// Response is a raw provider response
type Response interface {
	// Filter drops entries whose URL or snippet contains any blocked
	// domain substring
	Filter(blocked []string) Response

	// Decode normalizes the entries
	Decode() []model.SearchResult
}

// Config holds search provider configuration
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string // overrides the engine endpoint
	EngineID string // google custom search cx
	Market   string // bing mkt

	Timeout   time.Duration
	UserAgent string

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// ConfigFromModel converts the app configuration
func ConfigFromModel(s model.SearchConfig, h model.HTTPConfig) Config {
	return Config{
		Provider:   s.Provider,
		APIKey:     s.APIKey,
		BaseURL:    s.BaseURL,
		EngineID:   s.EngineID,
		Market:     s.Market,
		Timeout:    h.Timeout,
		UserAgent:  h.UserAgent,
		HTTPProxy:  h.HTTPProxy,
		HTTPSProxy: h.HTTPSProxy,
		NoProxy:    h.NoProxy,
	}
}

func newHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
		},
	}
}

func endpoint(cfg Config, fallback string) string {
	if cfg.BaseURL != "" {
		return strings.TrimRight(cfg.BaseURL, "/")
	}
	return fallback
}

// getJSON performs a GET and decodes the JSON body into out
func getJSON(ctx context.Context, client *http.Client, rawURL string, params url.Values, headers map[string]string, out any) error {
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("search API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// isBlocked reports whether any of the fields contains a blocked domain
func isBlocked(blocked []string, fields ...string) bool {
	for _, b := range blocked {
		if b == "" {
			continue
		}
		for _, f := range fields {
			if strings.Contains(f, b) {
				return true
			}
		}
	}
	return false
}
