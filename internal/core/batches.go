package core

import (
	"context"
	"strings"

	"growcore/pkg/domain"
)

// CreatePlantBatchInput creates an empty batch; plants join it on placement.
type CreatePlantBatchInput struct {
	Name         string  `json:"name" validate:"required,max=128"`
	StrainID     string  `json:"strain_id" validate:"required"`
	BatchType    string  `json:"batch_type" validate:"required,oneof=seed clone mother"`
	InitialCount int     `json:"initial_count" validate:"gte=1"`
	Notes        *string `json:"notes"`
	Actor        string  `json:"-"`
}

// CreatePlantBatch records a new provenance group. Its active count starts at
// zero and follows the plants placed against it.
func (s *Service) CreatePlantBatch(ctx context.Context, in CreatePlantBatchInput) (CommandResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	return s.command(ctx, "create_plant_batch", func(tx Transaction, res *CommandResult) error {
		if err := requireActiveStrain(tx.Snapshot(), in.StrainID); err != nil {
			return err
		}
		batch, err := tx.CreatePlantBatch(PlantBatch{
			Name:         in.Name,
			StrainID:     in.StrainID,
			BatchType:    domain.BatchType(in.BatchType),
			InitialCount: in.InitialCount,
			Notes:        in.Notes,
		})
		if err != nil {
			return err
		}
		res.touchBatch(batch.ID)
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityPlantBatch,
			TrackableID:   batch.ID,
			EventType:     domain.EventCreated,
			Metadata:      EventMetadata{StrainID: batch.StrainID, Count: batch.InitialCount},
		})
	})
}

// GetPlantBatch returns a batch by id, failing with ErrBatchNotFound.
func (s *Service) GetPlantBatch(ctx context.Context, id string) (PlantBatch, error) {
	var out PlantBatch
	err := s.view(ctx, "get_plant_batch", func(view TransactionView) error {
		b, ok := view.FindPlantBatch(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityPlantBatch, ID: id}
		}
		out = b
		return nil
	})
	return out, err
}

// ListPlantBatches returns every batch in creation order.
func (s *Service) ListPlantBatches(ctx context.Context) ([]PlantBatch, error) {
	var out []PlantBatch
	err := s.view(ctx, "list_plant_batches", func(view TransactionView) error {
		out = view.ListPlantBatches()
		return nil
	})
	return out, err
}
