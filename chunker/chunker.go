// Package chunker splits long text into overlapping, word-boundary-respecting
// segments sized for embedding models.
package chunker

import "strings"

// Config controls the chunking behaviour.
type Config struct {
	ChunkSize int // Maximum characters per chunk.
	Overlap   int // Characters shared between consecutive chunks.
}

// Chunker slices text into overlapping windows.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with sensible defaults.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = 200
	}
	// The word-boundary back-off never shortens a window below
	// ChunkSize/2, so an overlap at or under that floor guarantees every
	// window starts past the previous one and the loop terminates.
	if cfg.Overlap > cfg.ChunkSize/2 {
		cfg.Overlap = cfg.ChunkSize / 2
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits text into segments of at most ChunkSize characters, each
// trimmed of surrounding whitespace. Consecutive chunks share up to Overlap
// characters of trailing context. A window that would cut mid-word backs off
// to the last space in the window, provided that space lies past the window's
// midpoint; otherwise the hard cut stands so chunks never degenerate.
//
// Text no longer than ChunkSize is returned as a single chunk.
func (c *Chunker) Chunk(text string) []string {
	if len(text) <= c.cfg.ChunkSize {
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		// end may point past the text; the slice below clamps it, but the
		// unclamped value keeps the next-window arithmetic advancing so the
		// loop terminates on the final window.
		end := start + c.cfg.ChunkSize
		chunk := text[start:min(end, len(text))]

		// Back off to a word boundary, but only for windows that do not
		// reach the end of the text.
		if end < len(text) {
			if lastSpace := strings.LastIndex(chunk, " "); lastSpace > c.cfg.ChunkSize/2 {
				chunk = chunk[:lastSpace]
				end = start + lastSpace
			}
		}

		chunks = append(chunks, strings.TrimSpace(chunk))
		start = end - c.cfg.Overlap

		if start >= len(text) {
			break
		}
	}

	return chunks
}
