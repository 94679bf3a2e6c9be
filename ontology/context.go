package ontology

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdrago97/kudwa/store"
)

// InstanceSampleSize caps how many instances per entity the assembled
// context renders in full. Overflow collapses to a count line, so context
// length stays bounded regardless of dataset size.
const InstanceSampleSize = 3

// maxMeaningfulValueLen filters out long string properties from instance
// rendering; they bloat the prompt without aiding aggregate questions.
const maxMeaningfulValueLen = 50

// AssembleContext renders the persisted ontology into bounded natural-
// language text for the answer-generation call. Three ordered sections:
// entities with their property descriptions, relationships as
// "A --type--> B" lines, then per-entity instance samples. Relation and
// instance entity references resolve through the entities list and fall
// back to "Unknown". Instance groups appear in first-encounter order.
func AssembleContext(entities []store.Entity, relations []store.Relation, instances []store.Instance) string {
	var parts []string

	nameByID := make(map[int64]string, len(entities))
	for _, e := range entities {
		nameByID[e.ID] = e.Name
	}
	resolve := func(id int64) string {
		if name, ok := nameByID[id]; ok {
			return name
		}
		return "Unknown"
	}

	if len(entities) > 0 {
		parts = append(parts, "=== ENTITIES ===")
		for _, entity := range entities {
			if len(entity.Properties) > 0 {
				var props []string
				for _, k := range sortedMapKeys(entity.Properties) {
					props = append(props, fmt.Sprintf("%s: %s", k, entity.Properties[k]))
				}
				parts = append(parts, fmt.Sprintf("Entity '%s' has properties: %s",
					entity.Name, strings.Join(props, ", ")))
			} else {
				parts = append(parts, fmt.Sprintf("Entity '%s' (no properties defined)", entity.Name))
			}
		}
	}

	if len(relations) > 0 {
		parts = append(parts, "\n=== RELATIONSHIPS ===")
		for _, rel := range relations {
			parts = append(parts, fmt.Sprintf("%s --%s--> %s",
				resolve(rel.SourceEntityID), rel.RelType, resolve(rel.TargetEntityID)))
		}
	}

	if len(instances) > 0 {
		parts = append(parts, fmt.Sprintf("\n=== DATA INSTANCES (%d total) ===", len(instances)))

		// Group by owning entity, preserving first-encounter order.
		var order []string
		grouped := make(map[string][]store.Instance)
		for _, inst := range instances {
			name := resolve(inst.EntityID)
			if _, seen := grouped[name]; !seen {
				order = append(order, name)
			}
			grouped[name] = append(grouped[name], inst)
		}

		for _, name := range order {
			group := grouped[name]
			parts = append(parts, fmt.Sprintf("\n%s instances (%d):", name, len(group)))

			sample := group
			if len(sample) > InstanceSampleSize {
				sample = sample[:InstanceSampleSize]
			}
			for _, inst := range sample {
				var props []string
				for _, k := range sortedMapKeys(inst.Properties) {
					if v := inst.Properties[k]; meaningfulValue(v) {
						props = append(props, fmt.Sprintf("%s: %s", k, v))
					}
				}
				if len(props) > 0 {
					parts = append(parts, fmt.Sprintf("  - %s", strings.Join(props, ", ")))
				}
			}

			if len(group) > InstanceSampleSize {
				parts = append(parts, fmt.Sprintf("  ... and %d more", len(group)-InstanceSampleSize))
			}
		}
	}

	if len(parts) == 0 {
		return "No ontology data available yet."
	}
	return strings.Join(parts, "\n")
}

// meaningfulValue filters instance property values for rendering: numeric
// values must be non-zero, strings must be short. Filtered values stay in
// storage; they are only omitted from the context sample.
func meaningfulValue(v string) bool {
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n != 0
	}
	return len(v) < maxMeaningfulValueLen
}

// sortedMapKeys orders property keys lexically so rendered context is
// deterministic across runs.
func sortedMapKeys(p map[string]string) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
