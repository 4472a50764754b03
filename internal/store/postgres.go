package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrAlreadySubmitted is returned by SaveSubmission when the session already
// has a completion recorded for the bucket and no update was requested.
var ErrAlreadySubmitted = errors.New("submission already recorded for this period")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Sessions

func (s *PostgresStore) CreateSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO respondent_sessions (id) VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, id)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) SessionExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM respondent_sessions WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return exists, nil
}

// DeleteAllSessions removes every respondent session and, via cascade, every
// response and completion. Admin bulk-clear only.
func (s *PostgresStore) DeleteAllSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM respondent_sessions`)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	count, _ := result.RowsAffected()
	return count, nil
}

// Session tokens (Postgres fallback when Redis is not configured)

func (s *PostgresStore) SaveSessionToken(ctx context.Context, tokenHash, sessionID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_tokens (token_hash, session_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET session_id=EXCLUDED.session_id, expires_at=EXCLUDED.expires_at
	`, tokenHash, sessionID, expiresAt)
	if err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupSessionToken(ctx context.Context, tokenHash string) (string, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id FROM session_tokens
		WHERE token_hash = $1 AND expires_at > NOW()
	`, tokenHash).Scan(&sessionID)
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// Survey config reads

func (s *PostgresStore) ListSections(ctx context.Context, activeOnly bool) ([]Section, error) {
	query := `
		SELECT slug, title, description, sort_order, active, added_at, updated_at
		FROM survey_sections
	`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY sort_order, slug`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.Slug, &sec.Title, &sec.Description, &sec.SortOrder, &sec.Active, &sec.AddedAt, &sec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

func (s *PostgresStore) ListQuestions(ctx context.Context, activeOnly bool) ([]Question, error) {
	query := `
		SELECT slug, section_slug, title, description, qtype, required, randomize,
		       multiple_max, min_value, max_value, sort_order, active, added_at, updated_at
		FROM survey_questions
	`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY sort_order, slug`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.Slug, &q.SectionSlug, &q.Title, &q.Description, &q.Type, &q.Required, &q.Randomize,
			&q.MultipleMax, &q.MinValue, &q.MaxValue, &q.SortOrder, &q.Active, &q.AddedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *PostgresStore) ListOptions(ctx context.Context, activeOnly bool) ([]Option, error) {
	query := `
		SELECT slug, question_slug, label, description, sort_order, active
		FROM survey_options
	`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY question_slug, sort_order, slug`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	defer rows.Close()

	var options []Option
	for rows.Next() {
		var opt Option
		if err := rows.Scan(&opt.Slug, &opt.QuestionSlug, &opt.Label, &opt.Description, &opt.SortOrder, &opt.Active); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

// Config sync

// SyncSurvey reconciles the declarative config into the survey tables inside
// a single transaction: upsert by slug, then deactivate rows whose slug is
// absent from the new config. Rows are never hard-deleted so historical
// responses keep their foreign keys. The summary counts only rows that
// actually changed, which makes a repeated sync report all zeroes.
func (s *PostgresStore) SyncSurvey(ctx context.Context, sections []Section, questions []Question, options []Option) (SyncSummary, error) {
	var summary SyncSummary

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("begin sync tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sectionSlugs := make([]string, 0, len(sections))
	for _, sec := range sections {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO survey_sections (slug, title, description, sort_order, active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (slug) DO UPDATE
				SET title=EXCLUDED.title, description=EXCLUDED.description,
				    sort_order=EXCLUDED.sort_order, active=TRUE, updated_at=NOW()
				WHERE (survey_sections.title, survey_sections.description, survey_sections.sort_order, survey_sections.active)
					IS DISTINCT FROM (EXCLUDED.title, EXCLUDED.description, EXCLUDED.sort_order, TRUE)
		`, sec.Slug, sec.Title, sec.Description, sec.SortOrder)
		if err != nil {
			return summary, fmt.Errorf("upsert section %s: %w", sec.Slug, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			summary.SectionsChanged++
		}
		sectionSlugs = append(sectionSlugs, sec.Slug)
	}

	questionSlugs := make([]string, 0, len(questions))
	for _, q := range questions {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO survey_questions
				(slug, section_slug, title, description, qtype, required, randomize,
				 multiple_max, min_value, max_value, sort_order, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE)
			ON CONFLICT (slug) DO UPDATE
				SET section_slug=EXCLUDED.section_slug, title=EXCLUDED.title,
				    description=EXCLUDED.description, qtype=EXCLUDED.qtype,
				    required=EXCLUDED.required, randomize=EXCLUDED.randomize,
				    multiple_max=EXCLUDED.multiple_max, min_value=EXCLUDED.min_value,
				    max_value=EXCLUDED.max_value, sort_order=EXCLUDED.sort_order,
				    active=TRUE, updated_at=NOW()
				WHERE (survey_questions.section_slug, survey_questions.title, survey_questions.description,
				       survey_questions.qtype, survey_questions.required, survey_questions.randomize,
				       survey_questions.multiple_max, survey_questions.min_value, survey_questions.max_value,
				       survey_questions.sort_order, survey_questions.active)
					IS DISTINCT FROM
				      (EXCLUDED.section_slug, EXCLUDED.title, EXCLUDED.description,
				       EXCLUDED.qtype, EXCLUDED.required, EXCLUDED.randomize,
				       EXCLUDED.multiple_max, EXCLUDED.min_value, EXCLUDED.max_value,
				       EXCLUDED.sort_order, TRUE)
		`, q.Slug, q.SectionSlug, q.Title, q.Description, q.Type, q.Required, q.Randomize,
			q.MultipleMax, q.MinValue, q.MaxValue, q.SortOrder)
		if err != nil {
			return summary, fmt.Errorf("upsert question %s: %w", q.Slug, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			summary.QuestionsChanged++
		}
		questionSlugs = append(questionSlugs, q.Slug)
	}

	optionSlugs := make([]string, 0, len(options))
	for _, opt := range options {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO survey_options (slug, question_slug, label, description, sort_order, active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (slug) DO UPDATE
				SET question_slug=EXCLUDED.question_slug, label=EXCLUDED.label,
				    description=EXCLUDED.description, sort_order=EXCLUDED.sort_order,
				    active=TRUE, updated_at=NOW()
				WHERE (survey_options.question_slug, survey_options.label, survey_options.description,
				       survey_options.sort_order, survey_options.active)
					IS DISTINCT FROM
				      (EXCLUDED.question_slug, EXCLUDED.label, EXCLUDED.description,
				       EXCLUDED.sort_order, TRUE)
		`, opt.Slug, opt.QuestionSlug, opt.Label, opt.Description, opt.SortOrder)
		if err != nil {
			return summary, fmt.Errorf("upsert option %s: %w", opt.Slug, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			summary.OptionsChanged++
		}
		optionSlugs = append(optionSlugs, opt.Slug)
	}

	// Deactivate options first, then questions, then sections, so a section
	// removal deactivates its whole subtree in one sync.
	deactivations := []struct {
		table string
		slugs []string
		count *int
	}{
		{"survey_options", optionSlugs, &summary.OptionsDeactivated},
		{"survey_questions", questionSlugs, &summary.QuestionsDeactivated},
		{"survey_sections", sectionSlugs, &summary.SectionsDeactivated},
	}
	for _, d := range deactivations {
		result, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET active=FALSE, updated_at=NOW() WHERE active AND slug <> ALL($1)`, d.table),
			d.slugs)
		if err != nil {
			return summary, fmt.Errorf("deactivate %s: %w", d.table, err)
		}
		n, _ := result.RowsAffected()
		*d.count = int(n)
	}

	if err := tx.Commit(); err != nil {
		return summary, fmt.Errorf("commit sync tx: %w", err)
	}
	return summary, nil
}

// Submissions

// SaveSubmission persists one answer set in a single transaction. Existing
// rows for each answered question are deleted and reinserted (full replace),
// so a resubmit never leaves stale option rows behind. The completion marker
// is checked first: a second submission for the same bucket fails with
// ErrAlreadySubmitted unless allowUpdate is set.
func (s *PostgresStore) SaveSubmission(ctx context.Context, sessionID, bucket string, responses []Response, allowUpdate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var completed bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM survey_completions WHERE session_id=$1 AND month_bucket=$2)
	`, sessionID, bucket).Scan(&completed)
	if err != nil {
		return fmt.Errorf("check completion: %w", err)
	}
	if completed && !allowUpdate {
		return ErrAlreadySubmitted
	}

	questionSlugs := make([]string, 0, len(responses))
	seen := make(map[string]struct{})
	for _, resp := range responses {
		if _, ok := seen[resp.QuestionSlug]; ok {
			continue
		}
		seen[resp.QuestionSlug] = struct{}{}
		questionSlugs = append(questionSlugs, resp.QuestionSlug)
	}

	if len(questionSlugs) > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM survey_responses
			WHERE session_id=$1 AND month_bucket=$2 AND question_slug = ANY($3)
		`, sessionID, bucket, questionSlugs); err != nil {
			return fmt.Errorf("clear previous responses: %w", err)
		}
	}

	for _, resp := range responses {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO survey_responses
				(session_id, month_bucket, question_slug, option_slug,
				 text_value, numeric_value, awareness, sentiment, comment, skipped)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, sessionID, bucket, resp.QuestionSlug, resp.OptionSlug,
			resp.TextValue, resp.NumericValue, resp.Awareness, resp.Sentiment, resp.Comment, resp.Skipped); err != nil {
			return fmt.Errorf("insert response %s: %w", resp.QuestionSlug, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO survey_completions (session_id, month_bucket)
		VALUES ($1, $2)
		ON CONFLICT (session_id, month_bucket) DO UPDATE SET completed_at=NOW()
	`, sessionID, bucket); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submission tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasCompleted(ctx context.Context, sessionID, bucket string) (bool, error) {
	var completed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM survey_completions WHERE session_id=$1 AND month_bucket=$2)
	`, sessionID, bucket).Scan(&completed)
	if err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return completed, nil
}

// Report reads

func (s *PostgresStore) ListResponsesForBucket(ctx context.Context, bucket string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, month_bucket, question_slug, option_slug,
		       text_value, numeric_value, awareness, sentiment, comment, skipped,
		       created_at, updated_at
		FROM survey_responses
		WHERE month_bucket = $1
		ORDER BY question_slug, session_id, option_slug
	`, bucket)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var responses []Response
	for rows.Next() {
		var r Response
		if err := rows.Scan(&r.SessionID, &r.MonthBucket, &r.QuestionSlug, &r.OptionSlug,
			&r.TextValue, &r.NumericValue, &r.Awareness, &r.Sentiment, &r.Comment, &r.Skipped,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// EarliestBucket returns the oldest month bucket with any recorded response,
// or "" when no responses exist yet.
func (s *PostgresStore) EarliestBucket(ctx context.Context) (string, error) {
	var bucket sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MIN(month_bucket) FROM survey_responses`).Scan(&bucket)
	if err != nil {
		return "", fmt.Errorf("earliest bucket: %w", err)
	}
	if !bucket.Valid {
		return "", nil
	}
	return bucket.String, nil
}
