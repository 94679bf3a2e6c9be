package ontology

// BuildReport summarizes a proposal-building pass. Skipped counts extraction
// items that were missing a required field and therefore produced no
// proposal; callers surface it in logs so malformed extractions stay visible
// without blocking the well-formed remainder.
type BuildReport struct {
	Entities  int
	Relations int
	Instances int
	Skipped   int
}

// BuildProposals converts an extraction result into a flat list of reviewable
// proposals tagged with the originating file ID. Ordering is deterministic:
// entities first, then relations, then instances, each in extraction order.
//
// Items missing a required field (entity name; relation source, target, or
// type; instance entity) are skipped and counted in the report. Missing
// properties default to an empty map.
func BuildProposals(result ExtractionResult, fileID string) ([]Proposal, BuildReport) {
	proposals := make([]Proposal, 0, result.Total())
	var report BuildReport

	for _, entity := range result.Entities {
		if entity.Name == "" {
			report.Skipped++
			continue
		}
		proposals = append(proposals, Proposal{
			Type: ProposalEntity,
			Payload: EntityPayload{
				Name:         entity.Name,
				Properties:   orEmpty(entity.Properties),
				SourceFileID: fileID,
			},
		})
		report.Entities++
	}

	for _, relation := range result.Relations {
		if relation.Source == "" || relation.Target == "" || relation.Type == "" {
			report.Skipped++
			continue
		}
		proposals = append(proposals, Proposal{
			Type: ProposalRelation,
			Payload: RelationPayload{
				Source:       relation.Source,
				Target:       relation.Target,
				RelType:      relation.Type,
				Properties:   orEmpty(relation.Properties),
				SourceFileID: fileID,
			},
		})
		report.Relations++
	}

	for _, instance := range result.Instances {
		if instance.Entity == "" {
			report.Skipped++
			continue
		}
		proposals = append(proposals, Proposal{
			Type: ProposalInstance,
			Payload: InstancePayload{
				Entity:       instance.Entity,
				Properties:   orEmpty(instance.Properties),
				SourceFileID: fileID,
			},
		})
		report.Instances++
	}

	return proposals, report
}

func orEmpty(p Properties) Properties {
	if p == nil {
		return Properties{}
	}
	return p
}
