package ontology

import (
	"encoding/json"
	"testing"
)

func TestBuildProposalsCountAndOrder(t *testing.T) {
	result := ExtractionResult{
		Entities: []Entity{
			{Name: "Report", Properties: Properties{"reportBasis": "accrual or cash"}},
			{Name: "Account"},
		},
		Relations: []Relation{
			{Source: "Report", Target: "Section", Type: "hasSection"},
		},
		Instances: []Instance{
			{Entity: "Account", Properties: Properties{"accountName": "Revenue"}},
		},
	}

	proposals, report := BuildProposals(result, "42")

	if len(proposals) != 4 {
		t.Fatalf("got %d proposals, want 4", len(proposals))
	}
	if report.Entities != 2 || report.Relations != 1 || report.Instances != 1 || report.Skipped != 0 {
		t.Errorf("report = %+v", report)
	}

	// Entities first, then relations, then instances.
	wantTypes := []string{ProposalEntity, ProposalEntity, ProposalRelation, ProposalInstance}
	for i, want := range wantTypes {
		if proposals[i].Type != want {
			t.Errorf("proposals[%d].Type = %s, want %s", i, proposals[i].Type, want)
		}
	}
}

func TestBuildProposalsSkipsMalformed(t *testing.T) {
	result := ExtractionResult{
		Entities: []Entity{
			{Name: ""},
			{Name: "Period"},
		},
		Relations: []Relation{
			{Source: "", Target: "Section", Type: "hasSection"},
			{Source: "Report", Target: "", Type: "hasSection"},
			{Source: "Report", Target: "Section", Type: ""},
		},
		Instances: []Instance{
			{Entity: ""},
		},
	}

	proposals, report := BuildProposals(result, "7")

	if len(proposals) != 1 {
		t.Fatalf("got %d proposals, want 1", len(proposals))
	}
	if report.Skipped != 5 {
		t.Errorf("report.Skipped = %d, want 5", report.Skipped)
	}
	if report.Entities != 1 || report.Relations != 0 || report.Instances != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestBuildProposalsPayloadShape(t *testing.T) {
	result := ExtractionResult{
		Entities: []Entity{{Name: "Observation"}},
		Relations: []Relation{
			{Source: "Observation", Target: "Period", Type: "forPeriod", Properties: Properties{"note": "monthly"}},
		},
		Instances: []Instance{
			{Entity: "Observation", Properties: Properties{"amount": "99.9"}},
		},
	}

	proposals, _ := BuildProposals(result, "13")

	entityRaw, err := proposals[0].MarshalPayload()
	if err != nil {
		t.Fatal(err)
	}
	var entity map[string]any
	if err := json.Unmarshal(entityRaw, &entity); err != nil {
		t.Fatal(err)
	}
	if entity["name"] != "Observation" {
		t.Errorf("entity name = %v", entity["name"])
	}
	if entity["source_file_id"] != "13" {
		t.Errorf("entity source_file_id = %v", entity["source_file_id"])
	}
	// Missing properties serialize as an empty object, not null.
	if props, ok := entity["properties"].(map[string]any); !ok || len(props) != 0 {
		t.Errorf("entity properties = %v, want empty object", entity["properties"])
	}

	relationRaw, err := proposals[1].MarshalPayload()
	if err != nil {
		t.Fatal(err)
	}
	var relation map[string]any
	if err := json.Unmarshal(relationRaw, &relation); err != nil {
		t.Fatal(err)
	}
	if relation["source"] != "Observation" || relation["target"] != "Period" || relation["rel_type"] != "forPeriod" {
		t.Errorf("relation payload = %v", relation)
	}

	instanceRaw, err := proposals[2].MarshalPayload()
	if err != nil {
		t.Fatal(err)
	}
	var instance map[string]any
	if err := json.Unmarshal(instanceRaw, &instance); err != nil {
		t.Fatal(err)
	}
	if instance["entity"] != "Observation" {
		t.Errorf("instance payload = %v", instance)
	}
}

func TestBuildProposalsEmptyResult(t *testing.T) {
	proposals, report := BuildProposals(EmptyResult(), "1")

	if len(proposals) != 0 {
		t.Errorf("got %d proposals, want 0", len(proposals))
	}
	if report != (BuildReport{}) {
		t.Errorf("report = %+v, want zero", report)
	}
}
