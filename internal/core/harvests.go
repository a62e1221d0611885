package core

import (
	"context"
	"fmt"
	"strings"

	"growcore/pkg/domain"
)

// HarvestInput cuts a set of plants into a new or existing harvest.
type HarvestInput struct {
	PlantIDs    []string `json:"plant_ids" validate:"required,min=1,dive,required"`
	HarvestID   string   `json:"harvest_id"`
	HarvestName string   `json:"harvest_name" validate:"max=128"`
	WetWeight   float64  `json:"wet_weight" validate:"gte=0"`
	Actor       string   `json:"-"`
}

// HarvestStatusInput advances a harvest through processing.
type HarvestStatusInput struct {
	HarvestID string   `json:"-" validate:"required"`
	Status    string   `json:"status" validate:"required"`
	DryWeight *float64 `json:"dry_weight" validate:"omitempty,gte=0"`
	Actor     string   `json:"-"`
}

// HarvestPlants terminates every listed plant as harvested and adds it to a
// harvest. All plants must be active and share one strain.
func (s *Service) HarvestPlants(ctx context.Context, in HarvestInput) (CommandResult, error) {
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	return s.command(ctx, "harvest_plants", func(tx Transaction, res *CommandResult) error {
		view := tx.Snapshot()
		plants := make([]Plant, 0, len(in.PlantIDs))
		seen := make(map[string]struct{}, len(in.PlantIDs))
		for _, id := range in.PlantIDs {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: plant %s listed twice", domain.ErrInvalidInput, id)
			}
			seen[id] = struct{}{}
			plant, err := activePlant(view, id)
			if err != nil {
				return err
			}
			if len(plants) > 0 && plant.StrainID != plants[0].StrainID {
				return fmt.Errorf("%w: plants %s and %s are different strains", domain.ErrInvalidInput, plants[0].ID, plant.ID)
			}
			plants = append(plants, plant)
		}
		strainID := plants[0].StrainID

		var harvest Harvest
		if in.HarvestID != "" {
			existing, ok := view.FindHarvest(in.HarvestID)
			if !ok {
				return domain.NotFoundError{Entity: EntityHarvest, ID: in.HarvestID}
			}
			if existing.Status != domain.HarvestStatusActive {
				return fmt.Errorf("%w: harvest %s is %s", domain.ErrInvalidInput, existing.ID, existing.Status)
			}
			if existing.StrainID != strainID {
				return fmt.Errorf("%w: harvest %s is strain %s, plants are %s", domain.ErrInvalidInput, existing.ID, existing.StrainID, strainID)
			}
			harvest = existing
		} else {
			name := strings.TrimSpace(in.HarvestName)
			if name == "" {
				name = "Harvest " + tx.Now().Format("2006-01-02")
			}
			created, err := tx.CreateHarvest(Harvest{
				Name:        name,
				StrainID:    strainID,
				Status:      domain.HarvestStatusActive,
				HarvestedAt: tx.Now(),
			})
			if err != nil {
				return err
			}
			harvest = created
		}

		harvestID := harvest.ID
		for _, plant := range plants {
			meta, err := terminate(tx, res, plant, domain.PlantStatusHarvested, func(p *Plant) {
				p.HarvestID = &harvestID
			})
			if err != nil {
				return err
			}
			meta.HarvestID = harvestID
			if err := appendEvent(tx, res, in.Actor, PlantEvent{
				TrackableType: EntityPlant,
				TrackableID:   plant.ID,
				EventType:     domain.EventHarvested,
				Metadata:      meta,
			}); err != nil {
				return err
			}
		}
		if _, err := tx.UpdateHarvest(harvestID, func(h *Harvest) error {
			h.PlantCount += len(plants)
			h.WetWeight += in.WetWeight
			return nil
		}); err != nil {
			return err
		}
		res.touchHarvest(harvestID)
		return nil
	})
}

// HarvestPlant harvests a single plant into a new harvest.
func (s *Service) HarvestPlant(ctx context.Context, in PlantActionInput) (CommandResult, error) {
	return s.HarvestPlants(ctx, HarvestInput{PlantIDs: []string{in.PlantID}, Actor: in.Actor})
}

// SetHarvestStatus moves a harvest forward through drying, dried, packaged
// and closed. Statuses never move backwards.
func (s *Service) SetHarvestStatus(ctx context.Context, in HarvestStatusInput) (CommandResult, error) {
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	next := HarvestStatus(in.Status)
	if !next.Valid() {
		return CommandResult{}, fmt.Errorf("%w: unknown harvest status %q", domain.ErrInvalidInput, in.Status)
	}
	return s.command(ctx, "set_harvest_status", func(tx Transaction, res *CommandResult) error {
		current, ok := tx.Snapshot().FindHarvest(in.HarvestID)
		if !ok {
			return domain.NotFoundError{Entity: EntityHarvest, ID: in.HarvestID}
		}
		if !current.Status.CanAdvanceTo(next) {
			return fmt.Errorf("%w: harvest %s cannot move from %s to %s", domain.ErrInvalidInput, current.ID, current.Status, next)
		}
		if _, err := tx.UpdateHarvest(current.ID, func(h *Harvest) error {
			h.Status = next
			if in.DryWeight != nil {
				h.DryWeight = *in.DryWeight
			}
			return nil
		}); err != nil {
			return err
		}
		res.touchHarvest(current.ID)
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityHarvest,
			TrackableID:   current.ID,
			EventType:     domain.EventStatusChanged,
			Metadata:      EventMetadata{HarvestID: current.ID, FromStatus: string(current.Status), ToStatus: string(next)},
		})
	})
}

// GetHarvest returns a harvest by id.
func (s *Service) GetHarvest(ctx context.Context, id string) (Harvest, error) {
	var out Harvest
	err := s.view(ctx, "get_harvest", func(view TransactionView) error {
		h, ok := view.FindHarvest(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityHarvest, ID: id}
		}
		out = h
		return nil
	})
	return out, err
}

// ListHarvests returns every harvest in creation order.
func (s *Service) ListHarvests(ctx context.Context) ([]Harvest, error) {
	var out []Harvest
	err := s.view(ctx, "list_harvests", func(view TransactionView) error {
		out = view.ListHarvests()
		return nil
	})
	return out, err
}
