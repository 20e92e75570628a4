package search

import (
	"fmt"
	"strings"
)

// NewProvider creates a search provider based on configuration
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "bing":
		return NewBingProvider(cfg)

	case "brave":
		return NewBraveProvider(cfg)

	case "google":
		return NewGoogleProvider(cfg)

	case "pubmed":
		return NewPubMedProvider(cfg)

	case "fake", "":
		return NewFakeProvider(0), nil

	default:
		return nil, fmt.Errorf("unknown search provider: %s (supported: bing, brave, google, pubmed, fake)", cfg.Provider)
	}
}
