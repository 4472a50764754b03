package export

import (
	"fmt"
	"time"

	"pulse/api/internal/report"
)

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Export renders the report in the requested format.
func (s *Service) Export(rep report.Report, format Format) (*Result, error) {
	switch format {
	case FormatPDF:
		html, err := renderHTML(rep, time.Now())
		if err != nil {
			return nil, err
		}
		data, err := renderPDF(html)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: fmt.Sprintf("pulse-report-%s.pdf", rep.Month),
			MimeType: "application/pdf",
		}, nil
	case FormatCSV:
		data, err := renderCSV(rep)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:     data,
			Filename: fmt.Sprintf("pulse-report-%s.csv", rep.Month),
			MimeType: "text/csv",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
