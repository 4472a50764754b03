package report

import (
	"testing"

	"pulse/api/internal/store"
)

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func question(slug, qtype string) store.Question {
	return store.Question{Slug: slug, SectionSlug: "tooling", Title: slug, Type: qtype, Active: true}
}

func option(questionSlug, slug string) store.Option {
	return store.Option{Slug: slug, QuestionSlug: questionSlug, Label: slug, Active: true}
}

func row(sessionID, questionSlug, optionSlug string) store.Response {
	return store.Response{
		SessionID:    sessionID,
		MonthBucket:  "2026-08",
		QuestionSlug: questionSlug,
		OptionSlug:   optionSlug,
	}
}

func TestBuildSingleChoicePercentages(t *testing.T) {
	questions := []store.Question{question("editor", store.TypeSingle)}
	options := []store.Option{
		option("editor", "editor_vscode"),
		option("editor", "editor_neovim"),
		option("editor", "editor_other"),
	}
	rows := []store.Response{
		row("s1", "editor", "editor_vscode"),
		row("s2", "editor", "editor_vscode"),
		row("s3", "editor", "editor_vscode"),
		row("s4", "editor", "editor_neovim"),
		row("s5", "editor", "editor_neovim"),
	}

	rep := Build(Month{2026, 8}, questions, options, rows)
	if len(rep.Questions) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(rep.Questions))
	}
	q := rep.Questions[0]
	if q.TotalResponses != 5 {
		t.Fatalf("expected 5 total responses, got %d", q.TotalResponses)
	}
	if got := q.Options[0]; got.Slug != "editor_vscode" || got.Count != 3 || got.Percent != 60 {
		t.Fatalf("unexpected top option: %+v", got)
	}
	if got := q.Options[1]; got.Slug != "editor_neovim" || got.Percent != 40 {
		t.Fatalf("unexpected second option: %+v", got)
	}
	// Zero-count options still appear.
	if got := q.Options[2]; got.Slug != "editor_other" || got.Count != 0 || got.Percent != 0 {
		t.Fatalf("expected zero-filled third option, got %+v", got)
	}

	var sum float64
	for _, opt := range q.Options {
		sum += opt.Percent
	}
	if sum < 99.5 || sum > 100.5 {
		t.Fatalf("single-choice percentages should sum to ~100, got %v", sum)
	}
}

func TestBuildMultipleChoiceDenominatorIsSessions(t *testing.T) {
	questions := []store.Question{question("tools", store.TypeMultiple)}
	options := []store.Option{
		option("tools", "tools_docker"),
		option("tools", "tools_terraform"),
	}
	// Both sessions picked both options: each option is at 100%.
	rows := []store.Response{
		row("s1", "tools", "tools_docker"),
		row("s1", "tools", "tools_terraform"),
		row("s2", "tools", "tools_docker"),
		row("s2", "tools", "tools_terraform"),
	}

	rep := Build(Month{2026, 8}, questions, options, rows)
	q := rep.Questions[0]
	if q.TotalResponses != 2 {
		t.Fatalf("expected 2 distinct sessions, got %d", q.TotalResponses)
	}
	for _, opt := range q.Options {
		if opt.Count != 2 || opt.Percent != 100 {
			t.Fatalf("expected each option at 2/100%%, got %+v", opt)
		}
	}
}

func TestBuildRankingTieBreaksOnDeclaredOrder(t *testing.T) {
	questions := []store.Question{question("editor", store.TypeSingle)}
	options := []store.Option{
		option("editor", "editor_b"),
		option("editor", "editor_a"),
	}
	rows := []store.Response{
		row("s1", "editor", "editor_b"),
		row("s2", "editor", "editor_a"),
	}

	rep := Build(Month{2026, 8}, questions, options, rows)
	q := rep.Questions[0]
	if q.Options[0].Slug != "editor_b" {
		t.Fatalf("tied counts should keep declared order, got %q first", q.Options[0].Slug)
	}
	if len(q.DeclaredOrder) != 2 || q.DeclaredOrder[0] != "editor_b" {
		t.Fatalf("unexpected declared order: %v", q.DeclaredOrder)
	}
}

func TestBuildEmptyMonthZeroFills(t *testing.T) {
	questions := []store.Question{
		question("editor", store.TypeSingle),
		question("hours", store.TypeNumeric),
		question("pairing", store.TypeExperience),
	}
	options := []store.Option{option("editor", "editor_vscode")}

	rep := Build(Month{2026, 1}, questions, options, nil)
	if len(rep.Questions) != 3 {
		t.Fatalf("expected a summary per question, got %d", len(rep.Questions))
	}
	for _, q := range rep.Questions {
		if q.TotalResponses != 0 || q.ResponseRate != 0 {
			t.Fatalf("expected zero-filled summary, got %+v", q)
		}
	}
	exp := rep.Questions[2].Experience
	if exp == nil || len(exp.Awareness) != 4 || len(exp.Sentiment) != 3 {
		t.Fatalf("expected zero-filled experience levels, got %+v", exp)
	}
}

func TestBuildExcludesUnknownQuestionsAsAnomalies(t *testing.T) {
	questions := []store.Question{question("editor", store.TypeSingle)}
	options := []store.Option{option("editor", "editor_vscode")}
	rows := []store.Response{
		row("s1", "editor", "editor_vscode"),
		row("s1", "deleted-question", ""),
		row("s2", "deleted-question", ""),
	}

	rep := Build(Month{2026, 8}, questions, options, rows)
	if rep.Anomalies != 2 {
		t.Fatalf("expected 2 anomalies, got %d", rep.Anomalies)
	}
	if rep.Questions[0].TotalResponses != 1 {
		t.Fatalf("anomalous rows must not leak into summaries, got %d", rep.Questions[0].TotalResponses)
	}
}

func TestBuildSkippedRowsCountSeparately(t *testing.T) {
	questions := []store.Question{question("editor", store.TypeSingle)}
	options := []store.Option{option("editor", "editor_vscode")}
	skippedRow := row("s2", "editor", "")
	skippedRow.Skipped = true
	rows := []store.Response{
		row("s1", "editor", "editor_vscode"),
		skippedRow,
	}

	rep := Build(Month{2026, 8}, questions, options, rows)
	q := rep.Questions[0]
	if q.TotalResponses != 2 || q.SkippedResponses != 1 {
		t.Fatalf("expected 2 total / 1 skipped, got %d/%d", q.TotalResponses, q.SkippedResponses)
	}
	if q.ResponseRate != 50 {
		t.Fatalf("expected 50%% response rate, got %v", q.ResponseRate)
	}
	// The skip contributes nothing to option counts.
	if q.Options[0].Count != 1 || q.Options[0].Percent != 100 {
		t.Fatalf("unexpected option count: %+v", q.Options[0])
	}
}

func TestBuildExperienceCrossTab(t *testing.T) {
	questions := []store.Question{question("pairing", store.TypeExperience)}

	using := store.AwarenessUsing
	heard := store.AwarenessHeard
	never := store.AwarenessNeverHeard
	positive := store.SentimentPositive
	negative := store.SentimentNegative

	rows := []store.Response{
		{SessionID: "s1", QuestionSlug: "pairing", Awareness: &using, Sentiment: &positive},
		{SessionID: "s2", QuestionSlug: "pairing", Awareness: &using, Sentiment: &negative},
		{SessionID: "s3", QuestionSlug: "pairing", Awareness: &heard, Sentiment: &positive},
		{SessionID: "s4", QuestionSlug: "pairing", Awareness: &never},
	}

	rep := Build(Month{2026, 8}, questions, nil, rows)
	exp := rep.Questions[0].Experience
	if exp == nil {
		t.Fatal("expected experience summary")
	}

	byLevel := make(map[string]LevelCount)
	for _, lc := range exp.Awareness {
		byLevel[lc.Level] = lc
	}
	if byLevel[store.AwarenessUsing].Count != 2 || byLevel[store.AwarenessUsing].Percent != 50 {
		t.Fatalf("unexpected using level: %+v", byLevel[store.AwarenessUsing])
	}
	if byLevel[store.AwarenessNeverHeard].Count != 1 {
		t.Fatalf("unexpected never-heard level: %+v", byLevel[store.AwarenessNeverHeard])
	}

	// Only non-zero cells appear, ordered awareness-major.
	if len(exp.CrossTab) != 3 {
		t.Fatalf("expected 3 cross cells, got %+v", exp.CrossTab)
	}
	first := exp.CrossTab[0]
	if first.Awareness != store.AwarenessHeard || first.Sentiment != store.SentimentPositive || first.Count != 1 {
		t.Fatalf("unexpected first cross cell: %+v", first)
	}
}

func TestBuildNumericUsesDeclaredBounds(t *testing.T) {
	q := question("hours", store.TypeNumeric)
	q.MinValue = floatPtr(0)
	q.MaxValue = floatPtr(8)

	rows := []store.Response{
		{SessionID: "s1", QuestionSlug: "hours", NumericValue: floatPtr(2)},
		{SessionID: "s2", QuestionSlug: "hours", NumericValue: floatPtr(4)},
		{SessionID: "s3", QuestionSlug: "hours", NumericValue: floatPtr(6)},
	}

	rep := Build(Month{2026, 8}, []store.Question{q}, nil, rows)
	num := rep.Questions[0].Numeric
	if num == nil || num.Count != 3 {
		t.Fatalf("expected numeric summary of 3 values, got %+v", num)
	}
	if num.Mean != 4 || num.Median != 4 || num.Min != 2 || num.Max != 6 {
		t.Fatalf("unexpected stats: %+v", num)
	}
	if len(num.Histogram) != histogramBins {
		t.Fatalf("expected %d bins, got %d", histogramBins, len(num.Histogram))
	}
	if num.Histogram[0].From != 0 || num.Histogram[len(num.Histogram)-1].To != 8 {
		t.Fatalf("bins should span declared bounds, got %+v .. %+v", num.Histogram[0], num.Histogram[len(num.Histogram)-1])
	}
	total := 0
	for _, bin := range num.Histogram {
		total += bin.Count
	}
	if total != 3 {
		t.Fatalf("every value must land in a bin, got %d", total)
	}
}

func TestBuildFreeformGroupsDistinctTexts(t *testing.T) {
	questions := []store.Question{question("friction", store.TypeFreeform)}
	rows := []store.Response{
		{SessionID: "s1", QuestionSlug: "friction", TextValue: strPtr("Waiting on CI")},
		{SessionID: "s2", QuestionSlug: "friction", TextValue: strPtr("  Waiting on CI  ")},
		{SessionID: "s3", QuestionSlug: "friction", TextValue: strPtr("Meetings")},
	}

	rep := Build(Month{2026, 8}, questions, nil, rows)
	texts := rep.Questions[0].Texts
	if len(texts) != 2 {
		t.Fatalf("expected 2 distinct texts, got %+v", texts)
	}
	if texts[0].Text != "Waiting on CI" || texts[0].Count != 2 {
		t.Fatalf("expected trimmed grouping, got %+v", texts[0])
	}
}

func TestBuildCollectsComments(t *testing.T) {
	questions := []store.Question{question("editor", store.TypeSingleFreeform)}
	options := []store.Option{option("editor", "editor_other")}

	r := row("s1", "editor", "editor_other")
	r.TextValue = strPtr("Helix")
	r.Comment = strPtr("switched this month")

	rep := Build(Month{2026, 8}, questions, options, []store.Response{r})
	q := rep.Questions[0]
	if len(q.WriteIns) != 1 || q.WriteIns[0].Text != "Helix" {
		t.Fatalf("expected write-in Helix, got %+v", q.WriteIns)
	}
	if len(q.Comments) != 1 || q.Comments[0] != "switched this month" {
		t.Fatalf("expected comment collected, got %+v", q.Comments)
	}
}

func TestBuildKeepsCommentOnSkippedRow(t *testing.T) {
	questions := []store.Question{question("editor", store.TypeSingle)}
	options := []store.Option{option("editor", "editor_vscode")}

	r := row("s1", "editor", "")
	r.Skipped = true
	r.Comment = strPtr("not using an editor this month")

	rep := Build(Month{2026, 8}, questions, options, []store.Response{r})
	q := rep.Questions[0]
	if q.SkippedResponses != 1 {
		t.Fatalf("expected 1 skipped response, got %d", q.SkippedResponses)
	}
	if len(q.Comments) != 1 || q.Comments[0] != "not using an editor this month" {
		t.Fatalf("expected skip comment surfaced, got %+v", q.Comments)
	}
	if q.Options[0].Count != 0 {
		t.Fatalf("skip must not count as a selection, got %+v", q.Options[0])
	}
}
