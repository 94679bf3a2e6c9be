package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// JSONParser passes JSON documents through verbatim. The raw bytes become
// the extraction payload directly, so the document's own key order survives
// into payload reduction.
type JSONParser struct{}

func (p *JSONParser) SupportedFormats() []string { return []string{"json"} }

func (p *JSONParser) Parse(ctx context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading JSON file: %w", err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON document")
	}

	return &Document{
		Payload: data,
		Text:    string(data),
		Method:  "native",
	}, nil
}
