package core

import (
	"context"
	"fmt"

	"growcore/pkg/domain"
)

// NewTagBindingRule blocks commits where an assigned tag and its plant do not
// point at each other, so a tag is never bound to two plants.
func NewTagBindingRule() Rule {
	return tagBindingRule{}
}

type tagBindingRule struct{}

func (tagBindingRule) Name() string { return "tag_binding" }

func (tagBindingRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	res := Result{}
	block := func(entity EntityType, id, msg string) {
		res.Violations = append(res.Violations, Violation{
			Rule:     "tag_binding",
			Severity: SeverityBlock,
			Message:  msg,
			Entity:   entity,
			EntityID: id,
		})
	}

	for _, change := range changes {
		if change.Entity != EntityMetrcTag {
			continue
		}
		after, ok := change.After.(MetrcTag)
		if !ok {
			continue
		}
		tag, ok := view.FindMetrcTag(after.Tag)
		if !ok {
			continue
		}
		switch tag.Status {
		case domain.TagStatusAssigned:
			if tag.PlantID == nil {
				block(EntityMetrcTag, tag.Tag, fmt.Sprintf("tag %s assigned without a plant", tag.Tag))
				continue
			}
			plant, ok := view.FindPlant(*tag.PlantID)
			if !ok || !plant.IsActive() || plant.Tag == nil || *plant.Tag != tag.Tag {
				block(EntityMetrcTag, tag.Tag, fmt.Sprintf("tag %s assigned to plant %s which does not hold it", tag.Tag, *tag.PlantID))
			}
		default:
			if tag.PlantID != nil {
				block(EntityMetrcTag, tag.Tag, fmt.Sprintf("tag %s is %s but still bound to plant %s", tag.Tag, tag.Status, *tag.PlantID))
			}
		}
	}

	_, plants := changedPlants(changes)
	for _, changed := range plants {
		plant, ok := view.FindPlant(changed.ID)
		if !ok || plant.Tag == nil {
			continue
		}
		if !plant.IsActive() {
			block(EntityPlant, plant.ID, fmt.Sprintf("%s plant %s still holds tag %s", plant.Status, plant.ID, *plant.Tag))
			continue
		}
		tag, ok := view.FindMetrcTag(*plant.Tag)
		if !ok || tag.Status != domain.TagStatusAssigned || tag.PlantID == nil || *tag.PlantID != plant.ID {
			block(EntityPlant, plant.ID, fmt.Sprintf("plant %s holds tag %s which is not assigned to it", plant.ID, *plant.Tag))
		}
	}
	return res, nil
}
