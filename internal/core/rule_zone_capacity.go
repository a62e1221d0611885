package core

import (
	"context"
	"fmt"
)

// NewZoneCapacityRule blocks commits that leave a touched slot over capacity.
func NewZoneCapacityRule() Rule {
	return zoneCapacityRule{}
}

type zoneCapacityRule struct{}

func (zoneCapacityRule) Name() string { return "zone_capacity" }

func (zoneCapacityRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	_, plants := changedPlants(changes)
	checked := make(map[string]struct{})
	res := Result{}
	for _, plant := range plants {
		if !plant.IsActive() || plant.Coordinate == nil {
			continue
		}
		key := plant.Coordinate.Key()
		if _, done := checked[key]; done {
			continue
		}
		checked[key] = struct{}{}

		room, ok := view.FindRoom(plant.Coordinate.RoomID)
		if !ok {
			res.Violations = append(res.Violations, Violation{
				Rule:     "zone_capacity",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("plant %s placed in unknown room %s", plant.ID, plant.Coordinate.RoomID),
				Entity:   EntityPlant,
				EntityID: plant.ID,
			})
			continue
		}
		spec, err := room.Layout.Resolve(*plant.Coordinate)
		if err != nil {
			res.Violations = append(res.Violations, Violation{
				Rule:     "zone_capacity",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("plant %s at unresolvable slot: %v", plant.ID, err),
				Entity:   EntityPlant,
				EntityID: plant.ID,
			})
			continue
		}
		count := len(view.PlantsAt(key))
		if count > spec.Capacity {
			res.Violations = append(res.Violations, Violation{
				Rule:     "zone_capacity",
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("%s over capacity: %d/%d plants", spec.Coordinate, count, spec.Capacity),
				Entity:   EntityRoom,
				EntityID: room.ID,
			})
		}
	}
	return res, nil
}
