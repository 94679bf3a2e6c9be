package ontology

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseExtraction recovers an ExtractionResult from raw model output. Model
// text is adversarial input here: it may be fenced, prefixed with prose, or
// not JSON at all. The returned error carries the failure reason for
// diagnostics; callers that need the fail-closed behaviour collapse it to
// EmptyResult at the boundary.
//
// On success all three slices are non-nil.
func ParseExtraction(raw string) (ExtractionResult, error) {
	text := normalizeModelJSON(raw)
	if text == "" {
		return EmptyResult(), fmt.Errorf("empty extraction response")
	}

	// Key presence is validated separately from decoding: an absent key and
	// an empty array are different failures.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &keys); err != nil {
		return EmptyResult(), fmt.Errorf("extraction response is not a JSON object: %w", err)
	}
	for _, required := range []string{"entities", "relations", "instances"} {
		if _, ok := keys[required]; !ok {
			return EmptyResult(), fmt.Errorf("extraction response missing %q key", required)
		}
	}

	var result ExtractionResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return EmptyResult(), fmt.Errorf("decoding extraction response: %w", err)
	}

	if result.Entities == nil {
		result.Entities = []Entity{}
	}
	if result.Relations == nil {
		result.Relations = []Relation{}
	}
	if result.Instances == nil {
		result.Instances = []Instance{}
	}
	return result, nil
}

// normalizeModelJSON trims the text and strips exactly one leading and one
// trailing markdown code fence. A language tag after the leading fence
// ("```json", "```JSON", ...) is discarded with it. Text without fences is
// returned trimmed; unbalanced fences are stripped independently.
func normalizeModelJSON(raw string) string {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		rest := text[3:]
		// Drop an optional language tag: letters up to the first newline.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && isLanguageTag(rest[:nl]) {
			rest = rest[nl+1:]
		}
		text = rest
	}
	if strings.HasSuffix(strings.TrimSpace(text), "```") {
		text = strings.TrimSpace(text)
		text = text[:len(text)-3]
	}

	return strings.TrimSpace(text)
}

// isLanguageTag reports whether s looks like a fence language tag
// (possibly empty, e.g. "json" or "").
func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
