package kudwa

import "errors"

var (
	// ErrFileNotFound is returned when a file ID does not exist in the store.
	ErrFileNotFound = errors.New("kudwa: file not found")

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = errors.New("kudwa: unsupported file format")

	// ErrParsingFailed is returned when document parsing fails.
	ErrParsingFailed = errors.New("kudwa: parsing failed")

	// ErrEmbeddingFailed is returned when embedding generation fails for
	// every chunk of a file.
	ErrEmbeddingFailed = errors.New("kudwa: embedding generation failed")

	// ErrExtractionFailed is returned when the extraction LLM call fails.
	// Malformed model output is not an extraction failure; it degrades to
	// an empty result instead.
	ErrExtractionFailed = errors.New("kudwa: ontology extraction failed")

	// ErrProposalNotFound is returned when a proposal ID does not exist.
	ErrProposalNotFound = errors.New("kudwa: proposal not found")

	// ErrProposalReviewed is returned when reviewing a proposal that is
	// no longer pending.
	ErrProposalReviewed = errors.New("kudwa: proposal already reviewed")

	// ErrLLMRequestFailed is returned when an LLM request fails.
	ErrLLMRequestFailed = errors.New("kudwa: LLM request failed")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("kudwa: invalid configuration")
)
