package ontology

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Reduction limits. A payload whose pretty-printed form fits MaxPayloadBytes
// passes through unchanged; an oversized payload is sampled and the result
// hard-capped at PayloadHardCap bytes.
const (
	DefaultMaxPayloadBytes = 2000
	DefaultPayloadHardCap  = 1500

	sampleMaxKeys     = 3 // mapping: first N keys in document order
	sampleMaxElements = 2 // per-key sequence values: first N elements
	sampleMaxItems    = 3 // top-level sequence: first N elements
)

// ReducePayload bounds an arbitrary JSON document to a byte budget while
// keeping a representative sample of its structure. This is a sampling
// heuristic, not a summarizer: it trades completeness for a predictable
// prompt size, and the final byte truncation may cut mid-token, leaving
// invalid JSON syntax in the sample. The extraction prompt tolerates that;
// degraded extraction quality on oversized inputs is the accepted cost.
//
// raw must be a serialized JSON value. The result is pretty-printed with
// two-space indentation.
func ReducePayload(raw []byte, maxBytes, hardCap int) string {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	if hardCap <= 0 {
		hardCap = DefaultPayloadHardCap
	}

	pretty := prettyJSON(raw)
	if len(pretty) <= maxBytes {
		return pretty
	}

	if sampled, ok := samplePayload(raw); ok {
		pretty = prettyJSON(sampled)
	}

	if len(pretty) > hardCap {
		pretty = pretty[:hardCap]
	}
	return pretty
}

// prettyJSON re-indents serialized JSON, preserving document key order.
// Invalid input is returned verbatim.
func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// samplePayload reduces a JSON document structurally: a top-level mapping
// keeps its first sampleMaxKeys keys (document order), trimming any
// sequence-valued entry to its first sampleMaxElements elements; a top-level
// sequence keeps its first sampleMaxItems elements. Scalars and invalid
// documents are returned unsampled (ok=false).
func samplePayload(raw []byte) ([]byte, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, false
	}

	delim, isDelim := tok.(json.Delim)
	if !isDelim {
		return nil, false
	}

	switch delim {
	case '{':
		return sampleObject(dec)
	case '[':
		return sampleArray(dec)
	default:
		return nil, false
	}
}

// sampleObject re-serializes the first keys of an object by hand so the
// document's key order survives the round trip (a map would shuffle it).
func sampleObject(dec *json.Decoder) ([]byte, bool) {
	var out bytes.Buffer
	out.WriteByte('{')
	kept := 0

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, ok := tok.(string)
		if !ok {
			return nil, false
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}

		if kept >= sampleMaxKeys {
			continue // consume remaining pairs, keep none
		}

		if trimmed, ok := trimSequence(value, sampleMaxElements); ok {
			value = trimmed
		}

		if kept > 0 {
			out.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, false
		}
		out.Write(keyJSON)
		out.WriteByte(':')
		out.Write(value)
		kept++
	}

	out.WriteByte('}')
	return out.Bytes(), true
}

func sampleArray(dec *json.Decoder) ([]byte, bool) {
	var out bytes.Buffer
	out.WriteByte('[')
	kept := 0

	for dec.More() {
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, false
		}
		if kept >= sampleMaxItems {
			continue
		}
		if kept > 0 {
			out.WriteByte(',')
		}
		out.Write(value)
		kept++
	}

	out.WriteByte(']')
	return out.Bytes(), true
}

// trimSequence shortens a sequence value to its first max elements. Values
// that are not sequences, or already short enough, are reported unchanged.
func trimSequence(value json.RawMessage, max int) (json.RawMessage, bool) {
	trimmedValue := strings.TrimSpace(string(value))
	if !strings.HasPrefix(trimmedValue, "[") {
		return nil, false
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(value, &elements); err != nil {
		return nil, false
	}
	if len(elements) <= max {
		return nil, false
	}

	var out bytes.Buffer
	out.WriteByte('[')
	for i, el := range elements[:max] {
		if i > 0 {
			out.WriteByte(',')
		}
		out.Write(el)
	}
	out.WriteByte(']')
	return out.Bytes(), true
}
