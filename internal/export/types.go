// Package export renders project reports as HTML or, through headless Chrome, PDF.
package export

import "errors"

// Format represents the report output format
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ParseFormat defaults an empty format to HTML.
func ParseFormat(raw string) (Format, bool) {
	switch Format(raw) {
	case "", FormatHTML:
		return FormatHTML, true
	case FormatPDF:
		return FormatPDF, true
	default:
		return "", false
	}
}

// Request contains parameters for a report
type Request struct {
	ProjectID string
	Format    Format
	ViewerID  string
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// RecentPostLimit caps the posts section.
const RecentPostLimit = 10

// LeaderboardLimit caps the project leaderboard section.
const LeaderboardLimit = 10

var (
	// ErrUnsupportedFormat is returned for anything but html and pdf.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates Chrome is not available for PDF rendering.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
