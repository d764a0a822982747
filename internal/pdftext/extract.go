// Package pdftext pulls plain text out of PDF documents.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoPages is returned for documents without any readable page.
var ErrNoPages = errors.New("pdf has no pages")

// Document is the text of a PDF, pages in order, each followed by a newline.
type Document struct {
	Pages int
	Text  string
}

// Extractor extracts text from PDF bytes. The zero value is ready to use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses content and returns its text. Any failure, including a
// parser panic on malformed input, is returned as an error and no partial
// text is kept.
func (e *Extractor) Extract(ctx context.Context, content []byte) (doc *Document, err error) {
	if len(content) == 0 {
		return nil, errors.New("pdf is empty")
	}

	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages := reader.NumPage()
	if pages == 0 {
		return nil, ErrNoPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return &Document{
		Pages: pages,
		Text:  strings.TrimSpace(sb.String()),
	}, nil
}
