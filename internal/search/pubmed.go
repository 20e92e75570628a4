package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/crowdframe/internal/model"
)

// PubMedProvider queries NCBI E-utilities: esearch for ids, esummary for
// the article metadata
type PubMedProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type pubmedSearch struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

type pubmedSummary struct {
	Result map[string]json.RawMessage `json:"result"`
}

type pubmedArticle struct {
	UID     string `json:"uid"`
	Title   string `json:"title"`
	Source  string `json:"source"`
	PubDate string `json:"pubdate"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
}

type pubmedResponse struct {
	Articles []pubmedArticle
}

// NewPubMedProvider creates a new PubMed provider. The API key is optional.
func NewPubMedProvider(cfg Config) (*PubMedProvider, error) {
	return &PubMedProvider{
		baseURL:    endpoint(cfg, "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"),
		apiKey:     cfg.APIKey,
		httpClient: newHTTPClient(cfg),
	}, nil
}

func (p *PubMedProvider) Name() string     { return "pubmed" }
func (p *PubMedProvider) MaxPageSize() int { return 100 }

func (p *PubMedProvider) Search(ctx context.Context, query string, offset, count int) (Response, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("retmode", "json")
	params.Set("term", query)
	params.Set("retstart", strconv.Itoa(offset))
	params.Set("retmax", strconv.Itoa(count))
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	var ids pubmedSearch
	if err := getJSON(ctx, p.httpClient, p.baseURL+"/esearch.fcgi", params, nil, &ids); err != nil {
		return nil, fmt.Errorf("pubmed esearch: %w", err)
	}
	if len(ids.ESearchResult.IDList) == 0 {
		return &pubmedResponse{}, nil
	}

	params = url.Values{}
	params.Set("db", "pubmed")
	params.Set("retmode", "json")
	params.Set("id", strings.Join(ids.ESearchResult.IDList, ","))
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	var summary pubmedSummary
	if err := getJSON(ctx, p.httpClient, p.baseURL+"/esummary.fcgi", params, nil, &summary); err != nil {
		return nil, fmt.Errorf("pubmed esummary: %w", err)
	}

	resp := &pubmedResponse{}
	for _, id := range ids.ESearchResult.IDList {
		raw, ok := summary.Result[id]
		if !ok {
			continue
		}
		var a pubmedArticle
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("pubmed esummary: decode %s: %w", id, err)
		}
		if a.UID == "" {
			a.UID = id
		}
		resp.Articles = append(resp.Articles, a)
	}
	return resp, nil
}

func articleURL(uid string) string {
	return "https://pubmed.ncbi.nlm.nih.gov/" + uid + "/"
}

func articleSnippet(a *pubmedArticle) string {
	parts := []string{}
	if len(a.Authors) > 0 {
		names := make([]string, 0, len(a.Authors))
		for _, au := range a.Authors {
			names = append(names, au.Name)
		}
		parts = append(parts, strings.Join(names, ", "))
	}
	if a.Source != "" {
		parts = append(parts, a.Source)
	}
	if a.PubDate != "" {
		parts = append(parts, a.PubDate)
	}
	return strings.Join(parts, ". ")
}

func (r *pubmedResponse) Filter(blocked []string) Response {
	out := &pubmedResponse{}
	for i := range r.Articles {
		a := r.Articles[i]
		if !isBlocked(blocked, articleURL(a.UID), articleSnippet(&a)) {
			out.Articles = append(out.Articles, a)
		}
	}
	return out
}

func (r *pubmedResponse) Decode() []model.SearchResult {
	results := make([]model.SearchResult, 0, len(r.Articles))
	for i := range r.Articles {
		a := &r.Articles[i]
		results = append(results, model.SearchResult{
			URL:     articleURL(a.UID),
			Name:    a.Title,
			Snippet: articleSnippet(a),
			Parameters: map[string]string{
				"uid":     a.UID,
				"source":  a.Source,
				"pubdate": a.PubDate,
			},
		})
	}
	return results
}
