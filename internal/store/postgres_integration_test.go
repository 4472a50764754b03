package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

func getTestDatabaseURL(t *testing.T) string {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}
	return databaseURL
}

func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, err := Open(ctx, getTestDatabaseURL(t))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, "../../db/migrations"); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	// Each test starts from a clean slate.
	for _, table := range []string{"survey_responses", "survey_completions", "session_tokens",
		"respondent_sessions", "survey_options", "survey_questions", "survey_sections"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clear %s: %v", table, err)
		}
	}

	return NewPostgresStore(db)
}

func testConfigRows() ([]Section, []Question, []Option) {
	sections := []Section{
		{Slug: "tooling", Title: "Tooling", SortOrder: 0, Active: true},
	}
	questions := []Question{
		{Slug: "primary-editor", SectionSlug: "tooling", Title: "Editor", Type: TypeSingle, Required: true, SortOrder: 0, Active: true},
		{Slug: "tools-used", SectionSlug: "tooling", Title: "Tools", Type: TypeMultiple, SortOrder: 1, Active: true},
	}
	options := []Option{
		{Slug: "primary-editor_vscode", QuestionSlug: "primary-editor", Label: "VS Code", SortOrder: 0, Active: true},
		{Slug: "tools-used_docker", QuestionSlug: "tools-used", Label: "Docker", SortOrder: 0, Active: true},
		{Slug: "tools-used_terraform", QuestionSlug: "tools-used", Label: "Terraform", SortOrder: 1, Active: true},
	}
	return sections, questions, options
}

func TestSyncSurveyIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	sections, questions, options := testConfigRows()

	first, err := s.SyncSurvey(ctx, sections, questions, options)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first.SectionsChanged != 1 || first.QuestionsChanged != 2 || first.OptionsChanged != 3 {
		t.Fatalf("unexpected first sync summary: %+v", first)
	}

	second, err := s.SyncSurvey(ctx, sections, questions, options)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if !second.Empty() {
		t.Fatalf("identical re-sync must report no changes, got %+v", second)
	}
}

func TestSyncSurveyDeactivatesAbsentRowsAndKeepsResponses(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	sections, questions, options := testConfigRows()

	if _, err := s.SyncSurvey(ctx, sections, questions, options); err != nil {
		t.Fatalf("initial sync: %v", err)
	}

	if err := s.CreateSession(ctx, "sess-1"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	responses := []Response{
		{SessionID: "sess-1", MonthBucket: "2026-08", QuestionSlug: "tools-used", OptionSlug: "tools-used_docker"},
	}
	if err := s.SaveSubmission(ctx, "sess-1", "2026-08", responses, false); err != nil {
		t.Fatalf("save submission: %v", err)
	}

	// Re-sync without the tools-used question.
	summary, err := s.SyncSurvey(ctx, sections, questions[:1], options[:1])
	if err != nil {
		t.Fatalf("shrinking sync: %v", err)
	}
	if summary.QuestionsDeactivated != 1 || summary.OptionsDeactivated != 2 {
		t.Fatalf("unexpected deactivations: %+v", summary)
	}

	active, err := s.ListQuestions(ctx, true)
	if err != nil {
		t.Fatalf("list active questions: %v", err)
	}
	if len(active) != 1 || active[0].Slug != "primary-editor" {
		t.Fatalf("expected only primary-editor active, got %+v", active)
	}
	all, err := s.ListQuestions(ctx, false)
	if err != nil {
		t.Fatalf("list all questions: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("deactivated question must not be deleted, got %d rows", len(all))
	}

	// Historical responses survive the deactivation.
	rows, err := s.ListResponsesForBucket(ctx, "2026-08")
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	if len(rows) != 1 || rows[0].QuestionSlug != "tools-used" {
		t.Fatalf("expected historical response intact, got %+v", rows)
	}

	// Re-adding the question reactivates it.
	if _, err := s.SyncSurvey(ctx, sections, questions, options); err != nil {
		t.Fatalf("restoring sync: %v", err)
	}
	active, err = s.ListQuestions(ctx, true)
	if err != nil {
		t.Fatalf("list active questions: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected reactivated question, got %+v", active)
	}
}

func TestSaveSubmissionReplacesMultipleChoiceRows(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	sections, questions, options := testConfigRows()
	if _, err := s.SyncSurvey(ctx, sections, questions, options); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := s.CreateSession(ctx, "sess-1"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	both := []Response{
		{SessionID: "sess-1", MonthBucket: "2026-08", QuestionSlug: "tools-used", OptionSlug: "tools-used_docker"},
		{SessionID: "sess-1", MonthBucket: "2026-08", QuestionSlug: "tools-used", OptionSlug: "tools-used_terraform"},
	}
	if err := s.SaveSubmission(ctx, "sess-1", "2026-08", both, false); err != nil {
		t.Fatalf("first submission: %v", err)
	}

	onlyDocker := []Response{
		{SessionID: "sess-1", MonthBucket: "2026-08", QuestionSlug: "tools-used", OptionSlug: "tools-used_docker"},
	}
	if err := s.SaveSubmission(ctx, "sess-1", "2026-08", onlyDocker, true); err != nil {
		t.Fatalf("update submission: %v", err)
	}

	rows, err := s.ListResponsesForBucket(ctx, "2026-08")
	if err != nil {
		t.Fatalf("list responses: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("resubmit must fully replace prior option rows, got %d rows", len(rows))
	}
	if rows[0].OptionSlug != "tools-used_docker" {
		t.Fatalf("unexpected surviving row: %+v", rows[0])
	}
}

func TestSaveSubmissionEnforcesOnePerBucket(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	sections, questions, options := testConfigRows()
	if _, err := s.SyncSurvey(ctx, sections, questions, options); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := s.CreateSession(ctx, "sess-1"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	rows := []Response{
		{SessionID: "sess-1", MonthBucket: "2026-08", QuestionSlug: "primary-editor", OptionSlug: "primary-editor_vscode"},
	}
	if err := s.SaveSubmission(ctx, "sess-1", "2026-08", rows, false); err != nil {
		t.Fatalf("first submission: %v", err)
	}

	err := s.SaveSubmission(ctx, "sess-1", "2026-08", rows, false)
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	// A different bucket is a fresh submission.
	fresh := []Response{
		{SessionID: "sess-1", MonthBucket: "2026-09", QuestionSlug: "primary-editor", OptionSlug: "primary-editor_vscode"},
	}
	if err := s.SaveSubmission(ctx, "sess-1", "2026-09", fresh, false); err != nil {
		t.Fatalf("next bucket submission: %v", err)
	}
}

func TestSessionTokenPostgresFallback(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.CreateSession(ctx, "sess-1"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := s.SaveSessionToken(ctx, "hash-1", "sess-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save token: %v", err)
	}
	sessionID, err := s.LookupSessionToken(ctx, "hash-1")
	if err != nil {
		t.Fatalf("lookup token: %v", err)
	}
	if sessionID != "sess-1" {
		t.Fatalf("expected sess-1, got %q", sessionID)
	}

	// Expired tokens do not resolve.
	if err := s.SaveSessionToken(ctx, "hash-2", "sess-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if _, err := s.DB().ExecContext(ctx,
		`UPDATE session_tokens SET expires_at = NOW() - INTERVAL '1 minute' WHERE token_hash = 'hash-2'`); err != nil {
		t.Fatalf("expire token: %v", err)
	}
	if _, err := s.LookupSessionToken(ctx, "hash-2"); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestEarliestBucket(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	bucket, err := s.EarliestBucket(ctx)
	if err != nil {
		t.Fatalf("earliest bucket: %v", err)
	}
	if bucket != "" {
		t.Fatalf("expected empty bucket with no responses, got %q", bucket)
	}

	sections, questions, options := testConfigRows()
	if _, err := s.SyncSurvey(ctx, sections, questions, options); err != nil {
		t.Fatalf("sync: %v", err)
	}
	for i, monthBucket := range []string{"2026-07", "2026-05", "2026-08"} {
		sessionID := fmt.Sprintf("sess-%d", i)
		if err := s.CreateSession(ctx, sessionID); err != nil {
			t.Fatalf("create session: %v", err)
		}
		rows := []Response{
			{SessionID: sessionID, MonthBucket: monthBucket, QuestionSlug: "primary-editor", OptionSlug: "primary-editor_vscode"},
		}
		if err := s.SaveSubmission(ctx, sessionID, monthBucket, rows, false); err != nil {
			t.Fatalf("save submission: %v", err)
		}
	}

	bucket, err = s.EarliestBucket(ctx)
	if err != nil {
		t.Fatalf("earliest bucket: %v", err)
	}
	if bucket != "2026-05" {
		t.Fatalf("expected 2026-05, got %q", bucket)
	}
}
