package core

import (
	"context"
	"fmt"
	"strings"

	"growcore/pkg/domain"
)

// PlacePlantInput creates a plant in an explicit slot.
type PlacePlantInput struct {
	Target
	StrainID     string `json:"strain_id" validate:"required_without=PlantBatchID"`
	PlantBatchID string `json:"plant_batch_id"`
	GrowthPhase  string `json:"growth_phase" validate:"omitempty,oneof=immature vegetative flowering"`
	CustomLabel  string `json:"custom_label" validate:"max=128,excluded_with=MetrcLabel"`
	MetrcLabel   string `json:"metrc_label"`
	Actor        string `json:"-"`
}

// MovePlantInput relocates an active plant.
type MovePlantInput struct {
	PlantID string `json:"-" validate:"required"`
	Target
	Actor string `json:"-"`
}

// SetPhaseInput sets a plant's growth phase directly.
type SetPhaseInput struct {
	PlantID string `json:"-" validate:"required"`
	Phase   string `json:"growth_phase" validate:"required,oneof=immature vegetative flowering"`
	Actor   string `json:"-"`
}

// PlantActionInput names a plant for commands without further parameters.
type PlantActionInput struct {
	PlantID string `json:"-" validate:"required"`
	Actor   string `json:"-"`
}

// TagPlantInput binds a compliance tag to a plant.
type TagPlantInput struct {
	PlantID string `json:"-" validate:"required"`
	Tag     string `json:"tag" validate:"required"`
	Actor   string `json:"-"`
}

// DestroyInput destroys a plant for a recorded reason.
type DestroyInput struct {
	PlantID string `json:"-" validate:"required"`
	Reason  string `json:"reason" validate:"required,max=512"`
	Actor   string `json:"-"`
}

// PlantFilter narrows ListPlants. Zero fields match everything.
type PlantFilter struct {
	RoomID       string      `form:"room_id"`
	PlantBatchID string      `form:"plant_batch_id"`
	Status       PlantStatus `form:"status"`
}

// PlacePlant creates an active plant in a slot with spare capacity, binds the
// optional compliance tag and counts the plant against its batch.
func (s *Service) PlacePlant(ctx context.Context, in PlacePlantInput) (CommandResult, error) {
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	phase, err := domain.ParseGrowthPhase(in.GrowthPhase)
	if err != nil {
		return CommandResult{}, err
	}
	var serial string
	if in.MetrcLabel != "" {
		if serial, err = domain.NormalizeTag(in.MetrcLabel); err != nil {
			return CommandResult{}, err
		}
	}
	return s.command(ctx, "place_plant", func(tx Transaction, res *CommandResult) error {
		view := tx.Snapshot()
		strainID := in.StrainID
		var batchID *string
		if in.PlantBatchID != "" {
			batch, ok := view.FindPlantBatch(in.PlantBatchID)
			if !ok {
				return domain.NotFoundError{Entity: EntityPlantBatch, ID: in.PlantBatchID}
			}
			if strainID == "" {
				strainID = batch.StrainID
			} else if strainID != batch.StrainID {
				return fmt.Errorf("%w: strain %s does not match batch %s strain %s", domain.ErrInvalidInput, strainID, batch.ID, batch.StrainID)
			}
			id := batch.ID
			batchID = &id
		}
		if err := requireActiveStrain(view, strainID); err != nil {
			return err
		}
		_, spec, err := resolveTarget(view, in.Target)
		if err != nil {
			return err
		}
		if err := checkCapacity(view, spec, ""); err != nil {
			return err
		}
		var tag *string
		if serial != "" {
			if err := requirePlantTag(view, serial); err != nil {
				return err
			}
			tag = &serial
		}
		var label *string
		if l := strings.TrimSpace(in.CustomLabel); l != "" {
			label = &l
		}
		coord := spec.Coordinate
		plant, err := tx.CreatePlant(Plant{
			StrainID:     strainID,
			PlantBatchID: batchID,
			Coordinate:   &coord,
			Phase:        phase,
			Status:       domain.PlantStatusActive,
			Tag:          tag,
			Label:        label,
			PlacedBy:     actorOrDefault(in.Actor),
			PlacedAt:     tx.Now(),
		})
		if err != nil {
			return err
		}
		if tag != nil {
			if err := assignTag(tx, *tag, plant.ID); err != nil {
				return err
			}
		}
		if batchID != nil {
			if err := adjustBatchCount(tx, *batchID, 1); err != nil {
				return err
			}
		}
		res.touchPlant(plant)
		meta := EventMetadata{To: &coord, StrainID: strainID, ToPhase: phase}
		if batchID != nil {
			meta.BatchID = *batchID
		}
		if tag != nil {
			meta.MetrcTag = *tag
		}
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityPlant,
			TrackableID:   plant.ID,
			EventType:     domain.EventPlaced,
			Metadata:      meta,
		})
	})
}

// MovePlant reassigns an active plant's slot in one step. Moving to the slot
// the plant already occupies succeeds without writing anything.
func (s *Service) MovePlant(ctx context.Context, in MovePlantInput) (CommandResult, error) {
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	return s.command(ctx, "move_plant", func(tx Transaction, res *CommandResult) error {
		view := tx.Snapshot()
		plant, err := activePlant(view, in.PlantID)
		if err != nil {
			return err
		}
		_, spec, err := resolveTarget(view, in.Target)
		if err != nil {
			return err
		}
		if plant.Coordinate != nil && plant.Coordinate.SameSlot(spec.Coordinate) {
			res.touchPlant(plant)
			return nil
		}
		if err := checkCapacity(view, spec, plant.ID); err != nil {
			return err
		}
		from := plant.Coordinate
		to := spec.Coordinate
		updated, err := tx.UpdatePlant(plant.ID, func(p *Plant) error {
			p.Coordinate = &to
			return nil
		})
		if err != nil {
			return err
		}
		if from != nil {
			res.touchSlot(*from)
		}
		res.touchPlant(updated)
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityPlant,
			TrackableID:   plant.ID,
			EventType:     domain.EventMoved,
			Metadata:      EventMetadata{From: from, To: &to},
		})
	})
}

// SetPlantPhase sets an active plant's phase directly, in either direction.
// Setting the current phase is a no-op.
func (s *Service) SetPlantPhase(ctx context.Context, in SetPhaseInput) (CommandResult, error) {
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	phase, err := domain.ParseGrowthPhase(in.Phase)
	if err != nil {
		return CommandResult{}, err
	}
	return s.command(ctx, "set_plant_phase", func(tx Transaction, res *CommandResult) error {
		plant, err := activePlant(tx.Snapshot(), in.PlantID)
		if err != nil {
			return err
		}
		return changePhase(tx, res, plant, phase, in.Actor)
	})
}

// AdvancePlantPhase moves an active plant one phase forward.
func (s *Service) AdvancePlantPhase(ctx context.Context, in PlantActionInput) (CommandResult, error) {
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	return s.command(ctx, "advance_plant_phase", func(tx Transaction, res *CommandResult) error {
		plant, err := activePlant(tx.Snapshot(), in.PlantID)
		if err != nil {
			return err
		}
		next, ok := plant.Phase.Next()
		if !ok {
			return fmt.Errorf("%w: plant %s is already %s", domain.ErrInvalidPhaseTransition, plant.ID, plant.Phase)
		}
		return changePhase(tx, res, plant, next, in.Actor)
	})
}

func changePhase(tx Transaction, res *CommandResult, plant Plant, phase GrowthPhase, actor string) error {
	res.touchPlant(plant)
	if plant.Phase == phase {
		return nil
	}
	from := plant.Phase
	if _, err := tx.UpdatePlant(plant.ID, func(p *Plant) error {
		p.Phase = phase
		return nil
	}); err != nil {
		return err
	}
	return appendEvent(tx, res, actor, PlantEvent{
		TrackableType: EntityPlant,
		TrackableID:   plant.ID,
		EventType:     domain.EventPhaseChanged,
		Metadata:      EventMetadata{FromPhase: from, ToPhase: phase, Correction: phase.Before(from)},
	})
}

// TagPlant binds an available tag to an active plant. A tag the plant
// already holds goes back to the pool and is reported as previous_tag.
func (s *Service) TagPlant(ctx context.Context, in TagPlantInput) (CommandResult, error) {
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	serial, err := domain.NormalizeTag(in.Tag)
	if err != nil {
		return CommandResult{}, err
	}
	return s.command(ctx, "tag_plant", func(tx Transaction, res *CommandResult) error {
		view := tx.Snapshot()
		plant, err := activePlant(view, in.PlantID)
		if err != nil {
			return err
		}
		if plant.Tag != nil && *plant.Tag == serial {
			res.touchPlant(plant)
			return nil
		}
		if err := requirePlantTag(view, serial); err != nil {
			return err
		}
		var previous string
		if plant.Tag != nil {
			previous = *plant.Tag
			if err := releaseTag(tx, previous); err != nil {
				return err
			}
			res.touchTag(previous)
		}
		if err := assignTag(tx, serial, plant.ID); err != nil {
			return err
		}
		updated, err := tx.UpdatePlant(plant.ID, func(p *Plant) error {
			p.Tag = &serial
			return nil
		})
		if err != nil {
			return err
		}
		res.touchPlant(updated)
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityPlant,
			TrackableID:   plant.ID,
			EventType:     domain.EventTagged,
			Metadata:      EventMetadata{MetrcTag: serial, PreviousTag: previous},
		})
	})
}

// UntagPlant returns an active plant's tag to the pool.
func (s *Service) UntagPlant(ctx context.Context, in PlantActionInput) (CommandResult, error) {
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	return s.command(ctx, "untag_plant", func(tx Transaction, res *CommandResult) error {
		plant, err := activePlant(tx.Snapshot(), in.PlantID)
		if err != nil {
			return err
		}
		if plant.Tag == nil {
			return fmt.Errorf("%w: plant %s holds no tag", domain.ErrInvalidInput, plant.ID)
		}
		serial := *plant.Tag
		if err := releaseTag(tx, serial); err != nil {
			return err
		}
		updated, err := tx.UpdatePlant(plant.ID, func(p *Plant) error {
			p.Tag = nil
			return nil
		})
		if err != nil {
			return err
		}
		res.touchTag(serial)
		res.touchPlant(updated)
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityPlant,
			TrackableID:   plant.ID,
			EventType:     domain.EventUntagged,
			Metadata:      EventMetadata{PreviousTag: serial},
		})
	})
}

// DestroyPlant terminates an active plant: it vacates its slot, releases its
// tag and leaves its batch's live count.
func (s *Service) DestroyPlant(ctx context.Context, in DestroyInput) (CommandResult, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	return s.command(ctx, "destroy_plant", func(tx Transaction, res *CommandResult) error {
		plant, err := activePlant(tx.Snapshot(), in.PlantID)
		if err != nil {
			return err
		}
		reason := in.Reason
		meta, err := terminate(tx, res, plant, domain.PlantStatusDestroyed, func(p *Plant) {
			p.DestroyReason = &reason
		})
		if err != nil {
			return err
		}
		meta.Reason = reason
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityPlant,
			TrackableID:   plant.ID,
			EventType:     domain.EventDestroyed,
			Metadata:      meta,
		})
	})
}

// terminate moves an active plant into a terminal status and undoes its
// holdings. The returned metadata records the vacated slot and released tag.
func terminate(tx Transaction, res *CommandResult, plant Plant, status PlantStatus, mutate func(*Plant)) (EventMetadata, error) {
	var meta EventMetadata
	res.touchPlant(plant)
	if plant.Tag != nil {
		if err := releaseTag(tx, *plant.Tag); err != nil {
			return meta, err
		}
		meta.PreviousTag = *plant.Tag
	}
	if plant.Coordinate != nil {
		from := *plant.Coordinate
		meta.From = &from
	}
	if _, err := tx.UpdatePlant(plant.ID, func(p *Plant) error {
		p.Status = status
		p.Coordinate = nil
		p.Tag = nil
		if mutate != nil {
			mutate(p)
		}
		return nil
	}); err != nil {
		return meta, err
	}
	if plant.PlantBatchID != nil {
		if err := adjustBatchCount(tx, *plant.PlantBatchID, -1); err != nil {
			return meta, err
		}
	}
	return meta, nil
}

// GetPlant returns a plant by id.
func (s *Service) GetPlant(ctx context.Context, id string) (Plant, error) {
	var out Plant
	err := s.view(ctx, "get_plant", func(view TransactionView) error {
		p, ok := view.FindPlant(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityPlant, ID: id}
		}
		out = p
		return nil
	})
	return out, err
}

// ListPlants returns plants matching the filter in creation order.
func (s *Service) ListPlants(ctx context.Context, filter PlantFilter) ([]Plant, error) {
	out := []Plant{}
	err := s.view(ctx, "list_plants", func(view TransactionView) error {
		candidates := view.ListPlants()
		if filter.PlantBatchID != "" {
			candidates = view.PlantsInBatch(filter.PlantBatchID)
		}
		for _, p := range candidates {
			if filter.Status != "" && p.Status != filter.Status {
				continue
			}
			if filter.RoomID != "" && (p.Coordinate == nil || p.Coordinate.RoomID != filter.RoomID) {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func activePlant(view TransactionView, id string) (Plant, error) {
	plant, ok := view.FindPlant(id)
	if !ok {
		return Plant{}, domain.NotFoundError{Entity: EntityPlant, ID: id}
	}
	if !plant.IsActive() {
		return Plant{}, fmt.Errorf("%w: plant %s is %s", domain.ErrPlantNotActive, plant.ID, plant.Status)
	}
	return plant, nil
}

func requireActiveStrain(view TransactionView, id string) error {
	strain, ok := view.FindStrain(id)
	if !ok {
		return domain.NotFoundError{Entity: EntityStrain, ID: id}
	}
	if !strain.Active {
		return fmt.Errorf("%w: strain %s (%s)", domain.ErrStrainInactive, strain.Name, strain.ID)
	}
	return nil
}

func adjustBatchCount(tx Transaction, batchID string, delta int) error {
	_, err := tx.UpdatePlantBatch(batchID, func(b *PlantBatch) error {
		b.ActivePlantCount += delta
		if b.ActivePlantCount < 0 {
			return fmt.Errorf("plant batch %s active count would drop below zero", b.ID)
		}
		return nil
	})
	return err
}
