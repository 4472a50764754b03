package report

import (
	"log"
	"sort"
	"strings"

	"pulse/api/internal/store"
)

var awarenessLevels = []string{
	store.AwarenessNeverHeard,
	store.AwarenessHeard,
	store.AwarenessUsedBefore,
	store.AwarenessUsing,
}

var sentimentLevels = []string{
	store.SentimentNegative,
	store.SentimentNeutral,
	store.SentimentPositive,
}

// Build aggregates raw response rows into one summary per active question.
// A month with no rows yields zero-filled summaries for every question, never
// an error. Rows referencing a question outside the active set are excluded
// and counted as anomalies.
func Build(month Month, questions []store.Question, options []store.Option, rows []store.Response) Report {
	optionsByQuestion := make(map[string][]store.Option)
	for _, opt := range options {
		optionsByQuestion[opt.QuestionSlug] = append(optionsByQuestion[opt.QuestionSlug], opt)
	}

	active := make(map[string]bool, len(questions))
	for _, q := range questions {
		active[q.Slug] = true
	}

	rowsByQuestion := make(map[string][]store.Response)
	anomalies := 0
	flagged := make(map[string]bool)
	for _, row := range rows {
		if !active[row.QuestionSlug] {
			anomalies++
			if !flagged[row.QuestionSlug] {
				flagged[row.QuestionSlug] = true
				log.Printf("report: excluding responses for unknown question %q in %s", row.QuestionSlug, month)
			}
			continue
		}
		rowsByQuestion[row.QuestionSlug] = append(rowsByQuestion[row.QuestionSlug], row)
	}

	report := Report{Month: month.String(), Anomalies: anomalies}
	for _, q := range questions {
		report.Questions = append(report.Questions, summarize(q, optionsByQuestion[q.Slug], rowsByQuestion[q.Slug]))
	}
	return report
}

func summarize(q store.Question, opts []store.Option, rows []store.Response) QuestionSummary {
	summary := QuestionSummary{
		Slug:    q.Slug,
		Section: q.SectionSlug,
		Title:   q.Title,
		Type:    q.Type,
	}

	sessions := make(map[string]bool)
	skipped := make(map[string]bool)
	var answeredRows []store.Response
	for _, row := range rows {
		sessions[row.SessionID] = true
		// Comments ride along with any row, including skips, so collect
		// them before the value aggregation filters anything out.
		if row.Comment != nil {
			if text := strings.TrimSpace(*row.Comment); text != "" {
				summary.Comments = append(summary.Comments, text)
			}
		}
		if row.Skipped {
			skipped[row.SessionID] = true
			continue
		}
		answeredRows = append(answeredRows, row)
	}
	summary.TotalResponses = len(sessions)
	summary.SkippedResponses = len(skipped)
	answered := summary.TotalResponses - summary.SkippedResponses
	summary.ResponseRate = percentOf(answered, summary.TotalResponses)

	switch q.Type {
	case store.TypeSingle, store.TypeSingleFreeform, store.TypeMultiple, store.TypeMultipleFreeform:
		summarizeChoice(&summary, q, opts, answeredRows, answered)
	case store.TypeExperience:
		summary.Experience = summarizeExperience(answeredRows)
	case store.TypeNumeric:
		summary.Numeric = summarizeNumeric(q, answeredRows)
	case store.TypeFreeform:
		summary.Texts = groupTexts(answeredRows, func(r store.Response) *string { return r.TextValue })
	}

	return summary
}

// summarizeChoice counts selections per option. The percentage denominator is
// the number of distinct sessions that answered the question, not the number
// of option rows, so multiple-choice percentages describe "share of
// respondents" and may legitimately sum above 100.
func summarizeChoice(summary *QuestionSummary, q store.Question, opts []store.Option, answeredRows []store.Response, answered int) {
	counts := make(map[string]int)
	known := make(map[string]bool, len(opts))
	declaredIndex := make(map[string]int, len(opts))
	for i, opt := range opts {
		known[opt.Slug] = true
		declaredIndex[opt.Slug] = i
		summary.DeclaredOrder = append(summary.DeclaredOrder, opt.Slug)
	}

	for _, row := range answeredRows {
		if row.OptionSlug == "" {
			continue
		}
		if !known[row.OptionSlug] {
			log.Printf("report: excluding selection of unknown option %q on question %q", row.OptionSlug, q.Slug)
			continue
		}
		counts[row.OptionSlug]++
	}

	for _, opt := range opts {
		summary.Options = append(summary.Options, OptionCount{
			Slug:    opt.Slug,
			Label:   opt.Label,
			Count:   counts[opt.Slug],
			Percent: percentOf(counts[opt.Slug], answered),
		})
	}
	sort.SliceStable(summary.Options, func(i, j int) bool {
		a, b := summary.Options[i], summary.Options[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return declaredIndex[a.Slug] < declaredIndex[b.Slug]
	})

	if q.Type == store.TypeSingleFreeform || q.Type == store.TypeMultipleFreeform {
		summary.WriteIns = groupTexts(answeredRows, func(r store.Response) *string { return r.TextValue })
	}
}

func summarizeExperience(answeredRows []store.Response) *ExperienceSummary {
	awarenessCounts := make(map[string]int)
	sentimentCounts := make(map[string]int)
	cross := make(map[string]map[string]int)

	total := 0
	for _, row := range answeredRows {
		if row.Awareness == nil {
			continue
		}
		total++
		awarenessCounts[*row.Awareness]++
		if row.Sentiment == nil {
			continue
		}
		sentimentCounts[*row.Sentiment]++
		if cross[*row.Awareness] == nil {
			cross[*row.Awareness] = make(map[string]int)
		}
		cross[*row.Awareness][*row.Sentiment]++
	}

	exp := &ExperienceSummary{}
	for _, level := range awarenessLevels {
		exp.Awareness = append(exp.Awareness, LevelCount{
			Level:   level,
			Count:   awarenessCounts[level],
			Percent: percentOf(awarenessCounts[level], total),
		})
	}
	for _, level := range sentimentLevels {
		exp.Sentiment = append(exp.Sentiment, LevelCount{
			Level:   level,
			Count:   sentimentCounts[level],
			Percent: percentOf(sentimentCounts[level], total),
		})
	}
	for _, aw := range awarenessLevels {
		for _, st := range sentimentLevels {
			if count := cross[aw][st]; count > 0 {
				exp.CrossTab = append(exp.CrossTab, CrossCell{Awareness: aw, Sentiment: st, Count: count})
			}
		}
	}
	return exp
}

func summarizeNumeric(q store.Question, answeredRows []store.Response) *NumericSummary {
	var values []float64
	for _, row := range answeredRows {
		if row.NumericValue != nil {
			values = append(values, *row.NumericValue)
		}
	}
	if len(values) == 0 {
		return &NumericSummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	// Declared bounds win over the observed range when both are present, so
	// bins stay comparable month over month.
	if q.MinValue != nil && q.MaxValue != nil && *q.MaxValue > *q.MinValue {
		lo, hi = *q.MinValue, *q.MaxValue
	}

	return &NumericSummary{
		Count:     len(values),
		Mean:      mean(values),
		Median:    percentile(sorted, 0.5),
		Min:       sorted[0],
		Max:       sorted[len(sorted)-1],
		Histogram: buildHistogram(values, lo, hi),
	}
}

// groupTexts groups distinct trimmed texts with occurrence counts, ordered by
// count descending then text ascending.
func groupTexts(rows []store.Response, pick func(store.Response) *string) []TextCount {
	counts := make(map[string]int)
	for _, row := range rows {
		value := pick(row)
		if value == nil {
			continue
		}
		text := strings.TrimSpace(*value)
		if text == "" {
			continue
		}
		counts[text]++
	}
	if len(counts) == 0 {
		return nil
	}

	grouped := make([]TextCount, 0, len(counts))
	for text, count := range counts {
		grouped = append(grouped, TextCount{Text: text, Count: count})
	}
	sort.Slice(grouped, func(i, j int) bool {
		if grouped[i].Count != grouped[j].Count {
			return grouped[i].Count > grouped[j].Count
		}
		return grouped[i].Text < grouped[j].Text
	})
	return grouped
}
