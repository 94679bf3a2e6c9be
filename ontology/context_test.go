package ontology

import (
	"strings"
	"testing"

	"github.com/pdrago97/kudwa/store"
)

func TestAssembleContextEmpty(t *testing.T) {
	got := AssembleContext(nil, nil, nil)
	if got != "No ontology data available yet." {
		t.Errorf("got %q", got)
	}
}

func TestAssembleContextEntities(t *testing.T) {
	entities := []store.Entity{
		{ID: 1, Name: "Report", Properties: map[string]string{"currency": "ISO code", "reportBasis": "accrual or cash"}},
		{ID: 2, Name: "Period"},
	}

	got := AssembleContext(entities, nil, nil)

	if !strings.Contains(got, "=== ENTITIES ===") {
		t.Errorf("missing entities header:\n%s", got)
	}
	// Property keys render sorted, so output is deterministic.
	if !strings.Contains(got, "Entity 'Report' has properties: currency: ISO code, reportBasis: accrual or cash") {
		t.Errorf("report line wrong:\n%s", got)
	}
	if !strings.Contains(got, "Entity 'Period' (no properties defined)") {
		t.Errorf("period line wrong:\n%s", got)
	}
	if strings.Contains(got, "RELATIONSHIPS") || strings.Contains(got, "DATA INSTANCES") {
		t.Errorf("empty sections must be omitted:\n%s", got)
	}
}

func TestAssembleContextRelations(t *testing.T) {
	entities := []store.Entity{
		{ID: 1, Name: "Report"},
		{ID: 2, Name: "Section"},
	}
	relations := []store.Relation{
		{SourceEntityID: 1, TargetEntityID: 2, RelType: "hasSection"},
		{SourceEntityID: 2, TargetEntityID: 99, RelType: "forReport"},
	}

	got := AssembleContext(entities, relations, nil)

	if !strings.Contains(got, "Report --hasSection--> Section") {
		t.Errorf("relation line wrong:\n%s", got)
	}
	if !strings.Contains(got, "Section --forReport--> Unknown") {
		t.Errorf("unresolved target must render as Unknown:\n%s", got)
	}
}

func TestAssembleContextInstanceSampling(t *testing.T) {
	entities := []store.Entity{
		{ID: 1, Name: "Observation"},
		{ID: 2, Name: "Account"},
	}
	instances := []store.Instance{
		{EntityID: 1, Properties: map[string]string{"amount": "100"}},
		{EntityID: 1, Properties: map[string]string{"amount": "200"}},
		{EntityID: 1, Properties: map[string]string{"amount": "300"}},
		{EntityID: 1, Properties: map[string]string{"amount": "400"}},
		{EntityID: 1, Properties: map[string]string{"amount": "500"}},
		{EntityID: 2, Properties: map[string]string{"accountName": "Revenue"}},
	}

	got := AssembleContext(entities, nil, instances)

	if !strings.Contains(got, "=== DATA INSTANCES (6 total) ===") {
		t.Errorf("instance header wrong:\n%s", got)
	}
	if !strings.Contains(got, "Observation instances (5):") {
		t.Errorf("group header wrong:\n%s", got)
	}
	if !strings.Contains(got, "... and 2 more") {
		t.Errorf("overflow line missing:\n%s", got)
	}
	// Only the first three samples render.
	if strings.Contains(got, "400") || strings.Contains(got, "500") {
		t.Errorf("samples beyond the cap must not render:\n%s", got)
	}
	if !strings.Contains(got, "Account instances (1):") {
		t.Errorf("second group missing:\n%s", got)
	}
	if !strings.Contains(got, "- accountName: Revenue") {
		t.Errorf("account sample line missing:\n%s", got)
	}
}

func TestAssembleContextFirstEncounterOrder(t *testing.T) {
	entities := []store.Entity{
		{ID: 1, Name: "Account"},
		{ID: 2, Name: "Period"},
	}
	instances := []store.Instance{
		{EntityID: 2, Properties: map[string]string{"periodKey": "2024-01"}},
		{EntityID: 1, Properties: map[string]string{"accountName": "COGS"}},
		{EntityID: 2, Properties: map[string]string{"periodKey": "2024-02"}},
	}

	got := AssembleContext(entities, nil, instances)

	period := strings.Index(got, "Period instances")
	account := strings.Index(got, "Account instances")
	if period < 0 || account < 0 {
		t.Fatalf("group headers missing:\n%s", got)
	}
	if period > account {
		t.Errorf("groups must follow first-encounter order:\n%s", got)
	}
	if !strings.Contains(got, "Period instances (2):") {
		t.Errorf("interleaved instances must group together:\n%s", got)
	}
}

func TestAssembleContextMeaningfulFilter(t *testing.T) {
	entities := []store.Entity{{ID: 1, Name: "Observation"}}
	instances := []store.Instance{
		{EntityID: 1, Properties: map[string]string{
			"amount": "0",
			"note":   strings.Repeat("long ", 20),
			"label":  "net income",
		}},
		{EntityID: 1, Properties: map[string]string{"amount": "0", "note": strings.Repeat("x", 60)}},
	}

	got := AssembleContext(entities, nil, instances)

	if strings.Contains(got, "amount: 0") {
		t.Errorf("zero numerics must be filtered:\n%s", got)
	}
	if strings.Contains(got, "note:") {
		t.Errorf("long strings must be filtered:\n%s", got)
	}
	if !strings.Contains(got, "label: net income") {
		t.Errorf("short strings must render:\n%s", got)
	}
	// The second instance has no meaningful property so it renders no line,
	// but it still counts toward the group size.
	if !strings.Contains(got, "Observation instances (2):") {
		t.Errorf("group count wrong:\n%s", got)
	}
}

func TestMeaningfulValue(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"0", false},
		{"0.0", false},
		{"-12.5", true},
		{"1500", true},
		{"USD", true},
		{strings.Repeat("a", 49), true},
		{strings.Repeat("a", 50), false},
		{"", true}, // empty string parses as no float, len 0 < 50
	}

	for _, tt := range cases {
		t.Run(tt.value, func(t *testing.T) {
			if got := meaningfulValue(tt.value); got != tt.want {
				t.Errorf("meaningfulValue(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
