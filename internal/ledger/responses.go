package ledger

import (
	"time"

	"github.com/ppiankov/crowdframe/internal/model"
)

// Value is a dimension value chosen by the worker
type Value struct {
	Field       string `json:"field,omitempty"` // form field the value was entered in
	Value       string `json:"value"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty"`
}

// Query is the text submitted to the embedded search engine
type Query struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
}

// Retrieved is one result of a retrieval batch, bound to the query that produced it
type Retrieved struct {
	Query  int                `json:"query"`
	Result model.SearchResult `json:"result"`
}

// Selected is a result the worker picked, bound to the latest query
type Selected struct {
	Query  int                `json:"query"`
	Result model.SearchResult `json:"result"`
}

// Responses bundles the four ledgers of a session
type Responses struct {
	Values    *Ledger[Value]
	Queries   *Ledger[Query]
	Retrieved *Ledger[Retrieved]
	Selected  *Ledger[Selected]
}

// NewResponses creates empty ledgers sharing one clock
func NewResponses(now func() time.Time) *Responses {
	return &Responses{
		Values:    New[Value](now),
		Queries:   New[Query](now),
		Retrieved: New[Retrieved](now),
		Selected:  New[Selected](now),
	}
}

// RecordValue appends a dimension value. The latest entry per dimension
// is the value shown to the worker; earlier ones are audit trail.
func (r *Responses) RecordValue(document, dimension int, v Value) Entry[Value] {
	return r.Values.Record(document, dimension, v)
}

// RecordQuery appends a search query
func (r *Responses) RecordQuery(document, dimension int, q Query) Entry[Query] {
	return r.Queries.Record(document, dimension, q)
}

// RecordRetrieved appends one retrieval batch as a single group
func (r *Responses) RecordRetrieved(document, dimension int, results []model.SearchResult) []Entry[Retrieved] {
	query := r.latestQuery(document)
	payloads := make([]Retrieved, len(results))
	for i, res := range results {
		payloads[i] = Retrieved{Query: query, Result: res}
	}
	return r.Retrieved.RecordBatch(document, dimension, payloads)
}

// RecordSelected appends a selected result. The query binding is always the
// latest query of the document at the time of the event.
func (r *Responses) RecordSelected(document, dimension int, result model.SearchResult) Entry[Selected] {
	return r.Selected.Record(document, dimension, Selected{Query: r.latestQuery(document), Result: result})
}

// CurrentValue returns the value currently shown for a document dimension
func (r *Responses) CurrentValue(document, dimension int) (Value, bool) {
	e, ok := r.Values.LastFor(document, dimension)
	return e.Payload, ok
}

// LatestSelectedURL returns the URL of the most recent selection for the document
func (r *Responses) LatestSelectedURL(document int) (string, bool) {
	e, ok := r.Selected.Last(document)
	if !ok {
		return "", false
	}
	return e.Payload.Result.URL, true
}

// LatestRetrievedURLs returns the URLs of the most recent retrieval batch
// for a document dimension. An empty latest batch yields no URLs.
func (r *Responses) LatestRetrievedURLs(document, dimension int) []string {
	group, ok := r.Retrieved.LastGroup(document, dimension)
	if !ok {
		return nil
	}
	var urls []string
	for _, e := range r.Retrieved.Entries(document) {
		if e.Group == group && e.Dimension == dimension {
			urls = append(urls, e.Payload.Result.URL)
		}
	}
	return urls
}

// latestQuery is queries[D].amount - 1, or -1 when nothing was searched yet
func (r *Responses) latestQuery(document int) int {
	return r.Queries.Amount(document) - 1
}
