package util

import (
	"net/http"
	"testing"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.internal:3128", "http://secure.internal:3128", "api.search.brave.com")

	tests := []struct {
		url  string
		want string
	}{
		{"http://api.bing.microsoft.com/v7.0/search", "http://proxy.internal:3128"},
		{"https://www.googleapis.com/customsearch/v1", "http://secure.internal:3128"},
		{"https://api.search.brave.com/res/v1/web/search", ""},
	}

	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, tt.url, nil)
		if err != nil {
			t.Fatal(err)
		}
		got, err := proxy(req)
		if err != nil {
			t.Fatalf("proxy(%s) failed: %v", tt.url, err)
		}
		if tt.want == "" {
			if got != nil {
				t.Errorf("Expected direct connection for %s, got %s", tt.url, got)
			}
			continue
		}
		if got == nil || got.String() != tt.want {
			t.Errorf("Expected %s for %s, got %v", tt.want, tt.url, got)
		}
	}
}
