package domain

import (
	"fmt"
	"time"
)

// EventType names the transition a PlantEvent documents.
type EventType string

// Event types appended by the orchestrator.
const (
	EventCreated      EventType = "created"
	EventPlaced       EventType = "placed"
	EventMoved        EventType = "moved"
	EventPhaseChanged EventType = "phase_changed"
	EventTagged       EventType = "tagged"
	EventUntagged     EventType = "untagged"
	EventNoted        EventType = "noted"
	EventHarvested    EventType = "harvested"
	EventDestroyed    EventType = "destroyed"
)

// EventStatusChanged records a harvest moving through its processing states.
const EventStatusChanged EventType = "status_changed"

var knownEventTypes = map[EventType]struct{}{
	EventCreated:      {},
	EventPlaced:       {},
	EventMoved:        {},
	EventPhaseChanged: {},
	EventTagged:       {},
	EventUntagged:     {},
	EventNoted:        {},
	EventHarvested:    {},
	EventDestroyed:    {},

	EventStatusChanged: {},
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// EventMetadata carries the type-specific payload of an event. Only the
// fields relevant to the event type are populated.
type EventMetadata struct {
	From        *Coordinate `json:"from,omitempty"`
	To          *Coordinate `json:"to,omitempty"`
	FromPhase   GrowthPhase `json:"from_phase,omitempty"`
	ToPhase     GrowthPhase `json:"to_phase,omitempty"`
	// Correction marks a phase change that moved backwards.
	Correction  bool        `json:"correction,omitempty"`
	MetrcTag    string      `json:"metrc_tag,omitempty"`
	PreviousTag string      `json:"previous_tag,omitempty"`
	Reason      string      `json:"reason,omitempty"`
	HarvestID   string      `json:"harvest_id,omitempty"`
	BatchID     string      `json:"plant_batch_id,omitempty"`
	StrainID    string      `json:"strain_id,omitempty"`
	Count       int         `json:"count,omitempty"`
	FromStatus  string      `json:"from_status,omitempty"`
	ToStatus    string      `json:"to_status,omitempty"`
}

// PlantEvent is an immutable audit record. Seq is assigned by the store at
// append time and orders events globally, including events written in the
// same transaction.
type PlantEvent struct {
	ID            string        `json:"id"`
	Seq           uint64        `json:"seq"`
	TrackableType EntityType    `json:"trackable_type"`
	TrackableID   string        `json:"trackable_id"`
	EventType     EventType     `json:"event_type"`
	Actor         string        `json:"actor"`
	Metadata      EventMetadata `json:"metadata"`
	Note          *string       `json:"note,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Validate checks that an event is well formed before it is appended.
func (e PlantEvent) Validate() error {
	if e.TrackableType == "" || e.TrackableID == "" {
		return fmt.Errorf("%w: event requires a trackable reference", ErrInvalidInput)
	}
	if !e.EventType.Valid() {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, e.EventType)
	}
	if e.EventType == EventNoted && (e.Note == nil || *e.Note == "") {
		return fmt.Errorf("%w: noted event requires a note", ErrInvalidInput)
	}
	return nil
}

// Clone returns a deep copy of the event.
func (e PlantEvent) Clone() PlantEvent {
	cp := e
	if e.Note != nil {
		note := *e.Note
		cp.Note = &note
	}
	if e.Metadata.From != nil {
		c := *e.Metadata.From
		cp.Metadata.From = &c
	}
	if e.Metadata.To != nil {
		c := *e.Metadata.To
		cp.Metadata.To = &c
	}
	return cp
}

// Matches reports whether the event satisfies the non-empty filter fields.
func (f EventFilter) Matches(e PlantEvent) bool {
	if f.TrackableType != "" && e.TrackableType != f.TrackableType {
		return false
	}
	if f.TrackableID != "" && e.TrackableID != f.TrackableID {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	return true
}

// Event listing bounds.
const (
	DefaultEventLimit = 50
	MaxEventLimit     = 500
)

// EventFilter selects events for listing. Zero fields match everything.
type EventFilter struct {
	TrackableType EntityType `form:"trackable_type" json:"trackable_type,omitempty"`
	TrackableID   string     `form:"trackable_id" json:"trackable_id,omitempty"`
	EventType     EventType  `form:"event_type" json:"event_type,omitempty"`
	Limit         int        `form:"limit" json:"limit,omitempty"`
	Offset        int        `form:"offset" json:"offset,omitempty"`
}

// Normalize clamps Limit and Offset into their allowed ranges.
func (f EventFilter) Normalize() EventFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultEventLimit
	}
	if f.Limit > MaxEventLimit {
		f.Limit = MaxEventLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// EventPage is one page of a newest-first event listing.
type EventPage struct {
	Data  []PlantEvent `json:"data"`
	Total int          `json:"total"`
}
