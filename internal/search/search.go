// Package search provides full-text search over freeform answers, write-ins,
// and comments. Meilisearch is the primary backend with Postgres FTS as
// fallback.
package search

// Kind classifies the freeform text unit a hit came from.
type Kind string

const (
	KindAnswer  Kind = "answer"
	KindWriteIn Kind = "write-in"
	KindComment Kind = "comment"
)

// Record is one freeform text unit pushed into the index. The ID must be
// deterministic per (session, month, question, kind) so reindexing after a
// resubmit overwrites instead of duplicating.
type Record struct {
	ID           string `json:"id"`
	QuestionSlug string `json:"questionSlug"`
	Month        string `json:"month"`
	Kind         Kind   `json:"kind"`
	Text         string `json:"text"`
}

type Query struct {
	Text         string
	Month        string // empty = all months
	QuestionSlug string // empty = all questions
	Limit        int
	Offset       int
}

type Result struct {
	QuestionSlug string `json:"questionSlug"`
	Month        string `json:"month"`
	Kind         Kind   `json:"kind"`
	Snippet      string `json:"snippet"`
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}
