// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by growcore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records, trackable
// references and persistence buckets.
const (
	// EntityFacility identifies a facility record.
	EntityFacility EntityType = "facility"
	// EntityRoom identifies a room record.
	EntityRoom EntityType = "room"
	// EntityStrain identifies a strain reference record.
	EntityStrain EntityType = "strain"
	// EntityPlantBatch identifies a plant batch record.
	EntityPlantBatch EntityType = "plant_batch"
	// EntityPlant identifies an individual plant record.
	EntityPlant EntityType = "plant"
	// EntityMetrcTag identifies a compliance tag record.
	EntityMetrcTag EntityType = "metrc_tag"
	// EntityHarvest identifies a harvest record.
	EntityHarvest EntityType = "harvest"
	// EntityPlantEvent identifies an event log record.
	EntityPlantEvent EntityType = "plant_event"
)

// GrowthPhase is a plant's growth stage.
type GrowthPhase string

// Growth phases in their natural order.
const (
	PhaseImmature   GrowthPhase = "immature"
	PhaseVegetative GrowthPhase = "vegetative"
	PhaseFlowering  GrowthPhase = "flowering"
)

// PlantStatus is the lifecycle status of a plant. Anything other than active is terminal.
type PlantStatus string

// Plant statuses.
const (
	PlantStatusActive    PlantStatus = "active"
	PlantStatusHarvested PlantStatus = "harvested"
	PlantStatusDestroyed PlantStatus = "destroyed"
)

// BatchType records the provenance of a plant batch.
type BatchType string

// Batch types.
const (
	BatchTypeSeed   BatchType = "seed"
	BatchTypeClone  BatchType = "clone"
	BatchTypeMother BatchType = "mother"
)

// TagStatus is the assignment state of a compliance tag.
type TagStatus string

// Tag statuses. Retired is terminal.
const (
	TagStatusAvailable TagStatus = "available"
	TagStatusAssigned  TagStatus = "assigned"
	TagStatusRetired   TagStatus = "retired"
)

// TagTypePlant is the default tag type used for plant tags.
const TagTypePlant = "plant_tag"

// HarvestStatus enumerates harvest processing states.
type HarvestStatus string

// Harvest statuses in processing order; closed is terminal.
const (
	HarvestStatusActive   HarvestStatus = "active"
	HarvestStatusDrying   HarvestStatus = "drying"
	HarvestStatusDried    HarvestStatus = "dried"
	HarvestStatusPackaged HarvestStatus = "packaged"
	HarvestStatusClosed   HarvestStatus = "closed"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Facility is the root of spatial addressing.
type Facility struct {
	Base
	Name          string `json:"name"`
	LicenseNumber string `json:"license_number"`
}

// Room belongs to a facility and owns a single addressing layout for its lifetime.
type Room struct {
	Base
	FacilityID string     `json:"facility_id"`
	Name       string     `json:"name"`
	Layout     RoomLayout `json:"layout"`
}

// Strain is reference data; inactive strains cannot be planted.
type Strain struct {
	Base
	Name     string `json:"name"`
	Category string `json:"category"`
	Active   bool   `json:"active"`
}

// PlantBatch groups plants created together from one seed, clone or mother source.
// ActivePlantCount is maintained by the orchestrator and checked at commit.
type PlantBatch struct {
	Base
	Name             string    `json:"name"`
	StrainID         string    `json:"strain_id"`
	BatchType        BatchType `json:"batch_type"`
	InitialCount     int       `json:"initial_count"`
	ActivePlantCount int       `json:"active_plant_count"`
	Notes            *string   `json:"notes,omitempty"`
}

// Plant is an individual tracked plant.
type Plant struct {
	Base
	StrainID      string      `json:"strain_id"`
	PlantBatchID  *string     `json:"plant_batch_id"`
	Coordinate    *Coordinate `json:"coordinate"`
	Phase         GrowthPhase `json:"growth_phase"`
	Status        PlantStatus `json:"status"`
	Tag           *string     `json:"metrc_tag"`
	Label         *string     `json:"custom_label,omitempty"`
	HarvestID     *string     `json:"harvest_id,omitempty"`
	DestroyReason *string     `json:"destroy_reason,omitempty"`
	PlacedBy      string      `json:"placed_by"`
	PlacedAt      time.Time   `json:"placed_at"`
}

// IsActive reports whether the plant is still in a non-terminal status.
func (p Plant) IsActive() bool {
	return p.Status == PlantStatusActive
}

// MetrcTag is a state-issued compliance serial.
type MetrcTag struct {
	Base
	Tag     string    `json:"tag"`
	TagType string    `json:"tag_type"`
	Status  TagStatus `json:"status"`
	PlantID *string   `json:"plant_id"`
}

// Harvest captures plants cut together.
type Harvest struct {
	Base
	Name        string        `json:"name"`
	StrainID    string        `json:"strain_id"`
	PlantCount  int           `json:"plant_count"`
	WetWeight   float64       `json:"wet_weight"`
	DryWeight   float64       `json:"dry_weight"`
	Status      HarvestStatus `json:"status"`
	HarvestedAt time.Time     `json:"harvested_at"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	// ActionAppend indicates an append-only record was added.
	ActionAppend Action = "append"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
