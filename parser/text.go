package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TextParser handles plain text (.txt) files. Free text has no JSON
// structure to sample, so the payload is a wrapper carrying a bounded
// content preview; the full text still flows to chunking and embedding.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	content := string(data)
	payload, err := json.Marshal(map[string]string{
		"document_type":   "txt",
		"filename":        filepath.Base(path),
		"content_preview": preview(content),
	})
	if err != nil {
		return nil, err
	}

	return &Document{
		Payload: payload,
		Text:    content,
		Method:  "native",
	}, nil
}
