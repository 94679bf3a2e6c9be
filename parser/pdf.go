package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts plain text per page. PDFs carry no structured payload,
// so the JSON sent to the extraction model is a small wrapper around a
// content preview; the full text still feeds the chunker for embeddings.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var text strings.Builder
	totalPages := reader.NumPage()

	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}

		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
	}

	if text.Len() == 0 {
		return nil, fmt.Errorf("no text extracted from PDF")
	}

	full := text.String()
	payload, err := json.Marshal(map[string]any{
		"document_type":   "pdf",
		"filename":        filepath.Base(path),
		"pages":           totalPages,
		"content_preview": preview(full),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding PDF payload: %w", err)
	}

	return &Document{
		Payload: payload,
		Text:    full,
		Method:  "native",
	}, nil
}
