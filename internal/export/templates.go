package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"pulse/api/internal/report"
)

//go:embed templates/report.html
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html").Funcs(template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		// barWidth scales a percentage to a pixel width for the inline bars.
		"barWidth": func(percent float64) int {
			return int(percent * 2)
		},
	}).ParseFS(templateFS, "templates/report.html"),
)

type templateData struct {
	Month       string
	GeneratedAt time.Time
	Questions   []report.QuestionSummary
}

func renderHTML(rep report.Report, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := reportTemplate.ExecuteTemplate(&buf, "report.html", templateData{
		Month:       rep.Month,
		GeneratedAt: now.UTC(),
		Questions:   rep.Questions,
	})
	if err != nil {
		return "", fmt.Errorf("render report template: %w", err)
	}
	return buf.String(), nil
}
