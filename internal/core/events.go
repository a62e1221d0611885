package core

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"growcore/pkg/domain"
)

// AddNoteInput attaches free text to any trackable entity.
type AddNoteInput struct {
	TrackableType EntityType `json:"trackable_type" validate:"required"`
	TrackableID   string     `json:"trackable_id" validate:"required"`
	Note          string     `json:"note" validate:"required,max=4096"`
	Actor         string     `json:"-"`
}

// NotePlantInput attaches free text to a plant in any status.
type NotePlantInput struct {
	PlantID string `json:"-" validate:"required"`
	Note    string `json:"note" validate:"required,max=4096"`
	Actor   string `json:"-"`
}

// NotePlant appends a noted event to a plant. Terminal plants accept notes.
func (s *Service) NotePlant(ctx context.Context, in NotePlantInput) (CommandResult, error) {
	return s.AddNote(ctx, AddNoteInput{TrackableType: EntityPlant, TrackableID: in.PlantID, Note: in.Note, Actor: in.Actor})
}

// AddNote appends a noted event without changing any state.
func (s *Service) AddNote(ctx context.Context, in AddNoteInput) (CommandResult, error) {
	in.Note = strings.TrimSpace(in.Note)
	if err := s.check(in); err != nil {
		return CommandResult{}, err
	}
	return s.command(ctx, "add_note", func(tx Transaction, res *CommandResult) error {
		view := tx.Snapshot()
		if !trackableExists(view, in.TrackableType, in.TrackableID) {
			return domain.NotFoundError{Entity: in.TrackableType, ID: in.TrackableID}
		}
		if in.TrackableType == EntityPlant {
			if p, ok := view.FindPlant(in.TrackableID); ok {
				res.touchPlant(p)
			}
		}
		note := in.Note
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: in.TrackableType,
			TrackableID:   in.TrackableID,
			EventType:     domain.EventNoted,
			Note:          &note,
		})
	})
}

func trackableExists(view TransactionView, kind EntityType, id string) bool {
	var ok bool
	switch kind {
	case EntityPlant:
		_, ok = view.FindPlant(id)
	case EntityPlantBatch:
		_, ok = view.FindPlantBatch(id)
	case EntityRoom:
		_, ok = view.FindRoom(id)
	case EntityHarvest:
		_, ok = view.FindHarvest(id)
	case EntityFacility:
		_, ok = view.FindFacility(id)
	case EntityStrain:
		_, ok = view.FindStrain(id)
	case EntityMetrcTag:
		_, ok = view.FindMetrcTag(id)
	}
	return ok
}

// ListEvents returns one page of matching events, newest first. Pages are
// cut by sequence number so concurrent appends never reorder earlier pages.
func (s *Service) ListEvents(ctx context.Context, filter EventFilter) (EventPage, error) {
	filter = filter.Normalize()
	page := EventPage{Data: []PlantEvent{}}
	err := s.view(ctx, "list_events", func(view TransactionView) error {
		events := view.Events()
		for i := len(events) - 1; i >= 0; i-- {
			e := events[i]
			if !filter.Matches(e) {
				continue
			}
			if page.Total >= filter.Offset && len(page.Data) < filter.Limit {
				page.Data = append(page.Data, e.Clone())
			}
			page.Total++
		}
		return nil
	})
	return page, err
}

// PlantEvents returns a plant's full history in creation order.
func (s *Service) PlantEvents(ctx context.Context, plantID string) ([]PlantEvent, error) {
	out := []PlantEvent{}
	err := s.view(ctx, "plant_events", func(view TransactionView) error {
		if _, ok := view.FindPlant(plantID); !ok {
			return domain.NotFoundError{Entity: EntityPlant, ID: plantID}
		}
		filter := EventFilter{TrackableType: EntityPlant, TrackableID: plantID}
		for _, e := range view.Events() {
			if filter.Matches(e) {
				out = append(out, e.Clone())
			}
		}
		return nil
	})
	return out, err
}

// EventSeq returns a lazy newest-first sequence of matching events over the
// log as committed when the sequence is first iterated. A zero Limit streams
// every match. Iteration stops when ctx is done.
func (s *Service) EventSeq(ctx context.Context, filter EventFilter) iter.Seq[PlantEvent] {
	return func(yield func(PlantEvent) bool) {
		var events []PlantEvent
		if err := s.store.View(ctx, func(view TransactionView) error {
			events = view.Events()
			return nil
		}); err != nil {
			s.logger.Error("event sequence snapshot failed", "error", err)
			return
		}
		skipped, emitted := 0, 0
		for i := len(events) - 1; i >= 0; i-- {
			if ctx.Err() != nil {
				return
			}
			e := events[i]
			if !filter.Matches(e) {
				continue
			}
			if skipped < filter.Offset {
				skipped++
				continue
			}
			if filter.Limit > 0 && emitted >= filter.Limit {
				return
			}
			emitted++
			if !yield(e.Clone()) {
				return
			}
		}
	}
}

// EventCount returns the number of events in the log.
func (s *Service) EventCount(ctx context.Context) (int, error) {
	var n int
	err := s.store.View(ctx, func(view TransactionView) error {
		n = len(view.Events())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
