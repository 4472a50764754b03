// Package export renders the monthly report as PDF (via headless Chrome) or
// CSV for operators.
package export

import "errors"

type Format string

const (
	FormatPDF Format = "pdf"
	FormatCSV Format = "csv"
)

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates the headless Chrome binary is not
// installed on this host.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
