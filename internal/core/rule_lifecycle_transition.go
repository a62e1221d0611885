package core

import (
	"context"
	"fmt"
)

// LifecycleTransitionRule blocks illegal state transitions: terminal plants
// never change status, phases and statuses must be known values, and
// harvests and tags only move forward.
func LifecycleTransitionRule() Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (lifecycleTransitionRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	res := Result{}
	block := func(entity EntityType, id, msg string) {
		res.Violations = append(res.Violations, Violation{
			Rule:     "lifecycle_transition",
			Severity: SeverityBlock,
			Message:  msg,
			Entity:   entity,
			EntityID: id,
		})
	}

	for _, change := range changes {
		switch change.Entity {
		case EntityPlant:
			after, ok := change.After.(Plant)
			if !ok {
				continue
			}
			if !after.Phase.Valid() {
				block(EntityPlant, after.ID, fmt.Sprintf("plant %s has unknown phase %q", after.ID, after.Phase))
			}
			switch after.Status {
			case PlantStatusActive, PlantStatusHarvested, PlantStatusDestroyed:
			default:
				block(EntityPlant, after.ID, fmt.Sprintf("plant %s has unknown status %q", after.ID, after.Status))
			}
			before, ok := change.Before.(Plant)
			if ok && before.Status.Terminal() && change.Action == ActionUpdate {
				if after.Status != before.Status || after.Phase != before.Phase || !sameCoordinate(before.Coordinate, after.Coordinate) {
					block(EntityPlant, after.ID, fmt.Sprintf("plant %s is %s and cannot change", after.ID, before.Status))
				}
			}
		case EntityHarvest:
			after, ok := change.After.(Harvest)
			if !ok {
				continue
			}
			if !after.Status.Valid() {
				block(EntityHarvest, after.ID, fmt.Sprintf("harvest %s has unknown status %q", after.ID, after.Status))
				continue
			}
			if before, ok := change.Before.(Harvest); ok && before.Status != after.Status && !before.Status.CanAdvanceTo(after.Status) {
				block(EntityHarvest, after.ID, fmt.Sprintf("harvest %s cannot move from %s to %s", after.ID, before.Status, after.Status))
			}
		case EntityMetrcTag:
			after, ok := change.After.(MetrcTag)
			if !ok {
				continue
			}
			if before, ok := change.Before.(MetrcTag); ok && before.Status == TagStatusRetired && after.Status != TagStatusRetired {
				block(EntityMetrcTag, after.Tag, fmt.Sprintf("tag %s is retired", after.Tag))
			}
		}
	}
	return res, nil
}

func sameCoordinate(a, b *Coordinate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.SameSlot(*b)
}
