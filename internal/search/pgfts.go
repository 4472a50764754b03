package search

import (
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the generated tsvector column on
// survey_responses. It is the fallback when Meilisearch is not configured.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	where := []string{`r.fts @@ plainto_tsquery('english', $1)`}
	args := []any{q.Text}
	argN := 2
	if q.Month != "" {
		where = append(where, fmt.Sprintf(`r.month_bucket = $%d`, argN))
		args = append(args, q.Month)
		argN++
	}
	if q.QuestionSlug != "" {
		where = append(where, fmt.Sprintf(`r.question_slug = $%d`, argN))
		args = append(args, q.QuestionSlug)
		argN++
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM survey_responses r WHERE ` + whereClause
	if err := p.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT r.question_slug, r.month_bucket,
			CASE WHEN coalesce(r.text_value, '') <> '' AND r.option_slug <> '' THEN 'write-in'
			     WHEN coalesce(r.text_value, '') <> '' THEN 'answer'
			     ELSE 'comment' END AS kind,
			ts_headline('english',
				trim(coalesce(r.text_value, '') || ' ' || coalesce(r.comment, '')),
				plainto_tsquery('english', $1),
				'MaxFragments=1,MaxWords=30') AS snippet,
			ts_rank(r.fts, plainto_tsquery('english', $1)) AS rank
		FROM survey_responses r
		WHERE %s
		ORDER BY rank DESC
		LIMIT $%d OFFSET $%d`, whereClause, argN, argN+1)
	args = append(args, limit, offset)

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var kind string
		var rank float64
		if err := rows.Scan(&r.QuestionSlug, &r.Month, &kind, &r.Snippet, &rank); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Kind = Kind(kind)
		results = append(results, r)
	}
	return results, total, rows.Err()
}
