// Package parser converts uploaded documents into a JSON payload for
// ontology extraction plus plain text for chunking and embedding. JSON files
// pass through verbatim; tabular and text formats are converted into a JSON
// representation the extraction prompt can sample.
package parser

import "context"

// Document is what a parser produces from a source file.
type Document struct {
	// Payload is the JSON value handed to payload reduction and then to
	// the extraction prompt.
	Payload []byte

	// Text is the embeddable plain-text rendering of the file.
	Text string

	// Method names the conversion strategy ("native" for all built-ins).
	Method string
}

// Parser can parse a specific set of file formats.
type Parser interface {
	Parse(ctx context.Context, path string) (*Document, error)
	SupportedFormats() []string
}

// contentPreviewLen bounds the preview embedded in wrapper payloads for
// formats that have no natural JSON structure.
const contentPreviewLen = 500

func preview(text string) string {
	if len(text) > contentPreviewLen {
		return text[:contentPreviewLen]
	}
	return text
}
