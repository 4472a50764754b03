package search

import (
	"errors"
	"testing"
)

type fakeSearcher struct {
	searchFn func(Query) ([]Result, int, error)
	lastQ    Query
}

func (f *fakeSearcher) Search(q Query) ([]Result, int, error) {
	f.lastQ = q
	if f.searchFn != nil {
		return f.searchFn(q)
	}
	return nil, 0, nil
}

func (f *fakeSearcher) Healthy() bool { return true }

func TestServiceUsesFallbackWithoutMeili(t *testing.T) {
	fallback := &fakeSearcher{
		searchFn: func(Query) ([]Result, int, error) {
			return []Result{{QuestionSlug: "friction", Month: "2026-08", Kind: KindAnswer, Snippet: "CI"}}, 1, nil
		},
	}
	svc := NewService(nil, fallback)

	resp := svc.Search(Query{Text: "ci", Month: "2026-08"})
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Query != "ci" {
		t.Fatalf("expected query echoed back, got %q", resp.Query)
	}
	if fallback.lastQ.Month != "2026-08" {
		t.Fatalf("filters must reach the fallback, got %+v", fallback.lastQ)
	}
}

func TestServiceReturnsEmptyOnFallbackError(t *testing.T) {
	fallback := &fakeSearcher{
		searchFn: func(Query) ([]Result, int, error) {
			return nil, 0, errors.New("connection refused")
		},
	}
	svc := NewService(nil, fallback)

	resp := svc.Search(Query{Text: "ci"})
	if resp.Results == nil {
		t.Fatal("results must be an empty slice, not nil")
	}
	if len(resp.Results) != 0 || resp.Total != 0 {
		t.Fatalf("expected empty response, got %+v", resp)
	}
}

func TestServiceNormalizesNilResults(t *testing.T) {
	svc := NewService(nil, &fakeSearcher{})
	resp := svc.Search(Query{Text: "anything"})
	if resp.Results == nil {
		t.Fatal("nil results from the backend must serialize as an empty array")
	}
}

func TestIndexNoopWithoutMeili(t *testing.T) {
	svc := NewService(nil, &fakeSearcher{})
	// Must not panic or block.
	svc.Index([]Record{{ID: "a", QuestionSlug: "friction", Month: "2026-08", Kind: KindAnswer, Text: "x"}})
}
