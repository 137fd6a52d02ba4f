package export

import (
	"context"
	"fmt"
	"html/template"
)

// DataStore loads the chapter fields needed for export.
type DataStore interface {
	GetChapterInfo(ctx context.Context, id string, revision string) (ChapterInfo, error)
}

// Service renders chapters and converts them to PDF.
type Service struct {
	store DataStore
}

// NewService creates an export service.
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export renders the chapter and produces a PDF.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	info, err := s.store.GetChapterInfo(ctx, req.ChapterID, req.Revision)
	if err != nil {
		return nil, fmt.Errorf("get chapter: %w", err)
	}

	data := TemplateData{
		OrderNumber: info.OrderNumber,
		Code:        info.Code,
		Title:       info.Title,
		Status:      info.Status,
		WriterName:  info.WriterName,
		BodyHTML:    template.HTML(BodyToHTML(info.Body)),
		UpdatedAt:   info.UpdatedAt,
	}

	html, err := RenderChapterHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	return exportPDF(html, info.Title)
}
