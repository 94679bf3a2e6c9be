// Package ontology implements the extraction pipeline core: payload
// reduction, LLM-driven ontology extraction, tolerant response parsing,
// proposal building, and context assembly for answer generation.
package ontology

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Properties is a string-to-string property map. LLM output routinely puts
// numbers and booleans where the schema asks for strings, so decoding
// coerces scalar values instead of rejecting the whole extraction; nested
// values are kept as compact JSON.
type Properties map[string]string

// UnmarshalJSON accepts any JSON object and stringifies its values.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Properties, len(raw))
	for k, v := range raw {
		out[k] = coerceString(v)
	}
	*p = out
	return nil
}

func coerceString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	// Arrays and objects keep their compact JSON text. null decodes into
	// the string branch above as "".
	return string(raw)
}

// Entity is a proposed ontology class (e.g. "Invoice"). Name is the identity
// key within one extraction batch; global reconciliation happens at review
// time in the store.
type Entity struct {
	Name       string     `json:"name"`
	Properties Properties `json:"properties"`
}

// Relation is a typed directed edge between two entity names. Source and
// Target reference Entity names, not persisted IDs; resolution happens when
// an approved relation is merged.
type Relation struct {
	Source     string     `json:"source"`
	Target     string     `json:"target"`
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
}

// Instance is a concrete data record belonging to the named Entity.
type Instance struct {
	Entity     string     `json:"entity"`
	Properties Properties `json:"properties"`
}

// ExtractionResult is the structured triple recovered from one extraction
// call. All three slices are always non-nil, possibly empty.
type ExtractionResult struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`
	Instances []Instance `json:"instances"`
}

// EmptyResult returns the all-empty triple used when extraction cannot run
// or its output cannot be recovered.
func EmptyResult() ExtractionResult {
	return ExtractionResult{
		Entities:  []Entity{},
		Relations: []Relation{},
		Instances: []Instance{},
	}
}

// Total returns the number of extracted items across all three kinds.
func (r ExtractionResult) Total() int {
	return len(r.Entities) + len(r.Relations) + len(r.Instances)
}

// Proposal types.
const (
	ProposalEntity   = "entity"
	ProposalRelation = "relation"
	ProposalInstance = "instance"
)

// Proposal is a reviewable, not-yet-persisted suggestion to extend the
// ontology. Payload is one of EntityPayload, RelationPayload, or
// InstancePayload depending on Type.
type Proposal struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// EntityPayload is the payload of an entity proposal.
type EntityPayload struct {
	Name         string     `json:"name"`
	Properties   Properties `json:"properties"`
	SourceFileID string     `json:"source_file_id"`
}

// RelationPayload is the payload of a relation proposal. Source and Target
// are entity names; the store resolves them to IDs on approval.
type RelationPayload struct {
	Source       string     `json:"source"`
	Target       string     `json:"target"`
	RelType      string     `json:"rel_type"`
	Properties   Properties `json:"properties"`
	SourceFileID string     `json:"source_file_id"`
}

// InstancePayload is the payload of an instance proposal.
type InstancePayload struct {
	Entity       string     `json:"entity"`
	Properties   Properties `json:"properties"`
	SourceFileID string     `json:"source_file_id"`
}

// MarshalPayload serializes a proposal payload for storage.
func (p Proposal) MarshalPayload() (json.RawMessage, error) {
	data, err := json.Marshal(p.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s proposal payload: %w", p.Type, err)
	}
	return data, nil
}
