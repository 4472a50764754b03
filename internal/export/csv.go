package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"pulse/api/internal/report"
)

// renderCSV flattens the report into long-format rows: one row per option,
// metric, distinct text, or comment.
func renderCSV(rep report.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"month", "question", "type", "kind", "key", "count", "percent", "value"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	row := func(q report.QuestionSummary, kind, key string, count int, percent, value float64, hasValue bool) []string {
		valueStr := ""
		if hasValue {
			valueStr = strconv.FormatFloat(value, 'f', -1, 64)
		}
		return []string{
			rep.Month, q.Slug, q.Type, kind, key,
			strconv.Itoa(count),
			strconv.FormatFloat(percent, 'f', -1, 64),
			valueStr,
		}
	}

	for _, q := range rep.Questions {
		records := [][]string{
			row(q, "total", "", q.TotalResponses, q.ResponseRate, 0, false),
			row(q, "skipped", "", q.SkippedResponses, 0, 0, false),
		}
		for _, opt := range q.Options {
			records = append(records, row(q, "option", opt.Slug, opt.Count, opt.Percent, 0, false))
		}
		for _, wi := range q.WriteIns {
			records = append(records, row(q, "write-in", wi.Text, wi.Count, 0, 0, false))
		}
		for _, text := range q.Texts {
			records = append(records, row(q, "text", text.Text, text.Count, 0, 0, false))
		}
		if q.Experience != nil {
			for _, level := range q.Experience.Awareness {
				records = append(records, row(q, "awareness", level.Level, level.Count, level.Percent, 0, false))
			}
			for _, level := range q.Experience.Sentiment {
				records = append(records, row(q, "sentiment", level.Level, level.Count, level.Percent, 0, false))
			}
			for _, cell := range q.Experience.CrossTab {
				records = append(records, row(q, "cross", cell.Awareness+"/"+cell.Sentiment, cell.Count, 0, 0, false))
			}
		}
		if q.Numeric != nil && q.Numeric.Count > 0 {
			records = append(records,
				row(q, "stat", "mean", q.Numeric.Count, 0, q.Numeric.Mean, true),
				row(q, "stat", "median", q.Numeric.Count, 0, q.Numeric.Median, true),
				row(q, "stat", "min", q.Numeric.Count, 0, q.Numeric.Min, true),
				row(q, "stat", "max", q.Numeric.Count, 0, q.Numeric.Max, true),
			)
			for _, bin := range q.Numeric.Histogram {
				key := strconv.FormatFloat(bin.From, 'f', 2, 64) + ".." + strconv.FormatFloat(bin.To, 'f', 2, 64)
				records = append(records, row(q, "bin", key, bin.Count, bin.Percent, 0, false))
			}
		}
		for _, comment := range q.Comments {
			records = append(records, row(q, "comment", comment, 1, 0, 0, false))
		}
		for _, record := range records {
			if err := w.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
