// Package export renders chapters to PDF through headless Chrome.
package export

import (
	"errors"
	"time"
)

// Request contains parameters for a chapter export.
type Request struct {
	ChapterID string
	Revision  string // empty or "latest" for the current row, else a commit hash
}

// ChapterInfo holds the chapter fields the exporter renders.
type ChapterInfo struct {
	ID          string
	OrderNumber int
	Code        string
	Title       string
	Status      string
	WriterName  string
	Body        string // edited body when present, otherwise the original
	UpdatedAt   time.Time
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates the headless browser is not installed.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
