package core

import (
	"context"
	"fmt"
)

// NewBatchCountRule blocks commits where a touched batch's active count
// differs from the number of its active plants.
func NewBatchCountRule() Rule {
	return batchCountRule{}
}

type batchCountRule struct{}

func (batchCountRule) Name() string { return "batch_count" }

func (batchCountRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	touched := make(map[string]struct{})
	before, after := changedPlants(changes)
	for i := range after {
		if after[i].PlantBatchID != nil {
			touched[*after[i].PlantBatchID] = struct{}{}
		}
		if before[i] != nil && before[i].PlantBatchID != nil {
			touched[*before[i].PlantBatchID] = struct{}{}
		}
	}
	for _, change := range changes {
		if change.Entity != EntityPlantBatch {
			continue
		}
		if b, ok := change.After.(PlantBatch); ok {
			touched[b.ID] = struct{}{}
		}
	}

	res := Result{}
	for id := range touched {
		batch, ok := view.FindPlantBatch(id)
		if !ok {
			continue
		}
		live := 0
		for _, p := range view.PlantsInBatch(id) {
			if p.IsActive() {
				live++
			}
		}
		if live != batch.ActivePlantCount {
			res.Violations = append(res.Violations, Violation{
				Rule:     "batch_count",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("plant batch %s (%s) records %d active plants, %d are active", batch.Name, batch.ID, batch.ActivePlantCount, live),
				Entity:   EntityPlantBatch,
				EntityID: batch.ID,
			})
		}
	}
	return res, nil
}
