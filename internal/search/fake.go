package search

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ppiankov/crowdframe/internal/model"
)

// FakeProvider returns deterministic results without network access.
// Used for local runs and tests.
type FakeProvider struct {
	total int
}

type fakeResponse struct {
	results []model.SearchResult
}

// NewFakeProvider creates a fake provider that knows total results per query
func NewFakeProvider(total int) *FakeProvider {
	if total <= 0 {
		total = 30
	}
	return &FakeProvider{total: total}
}

func (p *FakeProvider) Name() string     { return "fake" }
func (p *FakeProvider) MaxPageSize() int { return 50 }

func (p *FakeProvider) Search(ctx context.Context, query string, offset, count int) (Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slug := url.PathEscape(strings.ToLower(strings.Join(strings.Fields(query), "-")))
	if slug == "" {
		return &fakeResponse{}, nil
	}

	resp := &fakeResponse{}
	for i := offset; i < offset+count && i < p.total; i++ {
		resp.results = append(resp.results, model.SearchResult{
			URL:        fmt.Sprintf("https://example.org/%s/%d", slug, i),
			Name:       fmt.Sprintf("Result %d for <b>%s</b>", i+1, query),
			Snippet:    fmt.Sprintf("Snippet &amp; summary %d about %s", i+1, query),
			Parameters: map[string]string{"rank": strconv.Itoa(i + 1)},
		})
	}
	return resp, nil
}

func (r *fakeResponse) Filter(blocked []string) Response {
	out := &fakeResponse{}
	for _, res := range r.results {
		if !isBlocked(blocked, res.URL, res.Snippet) {
			out.results = append(out.results, res)
		}
	}
	return out
}

func (r *fakeResponse) Decode() []model.SearchResult {
	out := make([]model.SearchResult, len(r.results))
	copy(out, r.results)
	return out
}
