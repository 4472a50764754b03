package search

import "log"

// Service is the facade that tries Meilisearch first and falls back to
// Postgres FTS. meili may be nil when Meilisearch is not configured.
type Service struct {
	meili    *Meili
	fallback Searcher
}

func NewService(meili *Meili, fallback Searcher) *Service {
	return &Service{meili: meili, fallback: fallback}
}

func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// Index pushes records to Meilisearch fire-and-forget. The Postgres fallback
// needs no indexing: it reads the response rows directly.
func (s *Service) Index(records []Record) {
	if s.meili == nil || !s.meili.Healthy() || len(records) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexRecords(records); err != nil {
			log.Printf("search: index %d records: %v", len(records), err)
		}
	}()
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
