package search

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/crowdframe/internal/model"
)

// StripHTML returns the text content of an HTML fragment with entities
// decoded and whitespace collapsed. Engines highlight query terms with
// markup inside titles and snippets.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}

	var buf strings.Builder
	extractText(doc, &buf)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func extractText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, buf)
	}
}

func cleanResults(results []model.SearchResult) []model.SearchResult {
	for i := range results {
		results[i].Name = StripHTML(results[i].Name)
		results[i].Snippet = StripHTML(results[i].Snippet)
	}
	return results
}
