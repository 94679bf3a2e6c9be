package ontology

import (
	"testing"
)

func TestParseExtractionWellFormed(t *testing.T) {
	raw := `{
		"entities": [{"name": "Account", "properties": {"accountId": "unique id"}}],
		"relations": [{"source": "Report", "target": "Section", "type": "hasSection", "properties": {}}],
		"instances": [{"entity": "Observation", "properties": {"amount": "1250.50"}}]
	}`

	result, err := ParseExtraction(raw)
	if err != nil {
		t.Fatalf("ParseExtraction returned error: %v", err)
	}

	if len(result.Entities) != 1 || result.Entities[0].Name != "Account" {
		t.Errorf("entities = %+v", result.Entities)
	}
	if len(result.Relations) != 1 || result.Relations[0].Type != "hasSection" {
		t.Errorf("relations = %+v", result.Relations)
	}
	if len(result.Instances) != 1 || result.Instances[0].Properties["amount"] != "1250.50" {
		t.Errorf("instances = %+v", result.Instances)
	}
}

func TestParseExtractionStripsFence(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"json fence", "```json\n{\"entities\":[],\"relations\":[],\"instances\":[]}\n```"},
		{"bare fence", "```\n{\"entities\":[],\"relations\":[],\"instances\":[]}\n```"},
		{"leading whitespace", "  \n```json\n{\"entities\":[],\"relations\":[],\"instances\":[]}\n```\n  "},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseExtraction(tt.raw)
			if err != nil {
				t.Fatalf("ParseExtraction returned error: %v", err)
			}
			if result.Total() != 0 {
				t.Errorf("expected empty result, got %+v", result)
			}
			if result.Entities == nil || result.Relations == nil || result.Instances == nil {
				t.Error("slices must be non-nil on success")
			}
		})
	}
}

func TestParseExtractionMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace only", "   \n  "},
		{"not json", "I could not find any entities in this data."},
		{"json array", `[1, 2, 3]`},
		{"missing entities key", `{"relations": [], "instances": []}`},
		{"missing relations key", `{"entities": [], "instances": []}`},
		{"missing instances key", `{"entities": [], "relations": []}`},
		{"truncated", `{"entities": [{"name": "Acc`},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseExtraction(tt.raw)
			if err == nil {
				t.Fatal("expected error for malformed input")
			}
			if result.Total() != 0 {
				t.Errorf("malformed input must yield empty result, got %+v", result)
			}
			if result.Entities == nil || result.Relations == nil || result.Instances == nil {
				t.Error("even error results carry non-nil slices")
			}
		})
	}
}

func TestParseExtractionCoercesPropertyValues(t *testing.T) {
	// Models frequently emit numbers and booleans where the schema asks for
	// strings; those coerce rather than fail the whole extraction.
	raw := `{
		"entities": [],
		"relations": [],
		"instances": [{"entity": "Observation", "properties": {"amount": 42.5, "final": true, "note": "ok"}}]
	}`

	result, err := ParseExtraction(raw)
	if err != nil {
		t.Fatalf("ParseExtraction returned error: %v", err)
	}

	props := result.Instances[0].Properties
	if props["amount"] != "42.5" {
		t.Errorf("amount = %q, want coerced \"42.5\"", props["amount"])
	}
	if props["final"] != "true" {
		t.Errorf("final = %q, want coerced \"true\"", props["final"])
	}
	if props["note"] != "ok" {
		t.Errorf("note = %q", props["note"])
	}
}

func TestParseExtractionNullArrays(t *testing.T) {
	result, err := ParseExtraction(`{"entities": null, "relations": null, "instances": null}`)
	if err != nil {
		t.Fatalf("ParseExtraction returned error: %v", err)
	}
	if result.Entities == nil || result.Relations == nil || result.Instances == nil {
		t.Error("null arrays must normalize to empty slices")
	}
}
