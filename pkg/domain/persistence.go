package domain

import (
	"context"
	"time"
)

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	Now() time.Time
	CreateFacility(Facility) (Facility, error)
	CreateRoom(Room) (Room, error)
	CreateStrain(Strain) (Strain, error)
	UpdateStrain(id string, mutator func(*Strain) error) (Strain, error)
	CreatePlantBatch(PlantBatch) (PlantBatch, error)
	UpdatePlantBatch(id string, mutator func(*PlantBatch) error) (PlantBatch, error)
	CreatePlant(Plant) (Plant, error)
	UpdatePlant(id string, mutator func(*Plant) error) (Plant, error)
	CreateMetrcTag(MetrcTag) (MetrcTag, error)
	UpdateMetrcTag(tag string, mutator func(*MetrcTag) error) (MetrcTag, error)
	CreateHarvest(Harvest) (Harvest, error)
	UpdateHarvest(id string, mutator func(*Harvest) error) (Harvest, error)
	AppendEvent(PlantEvent) (PlantEvent, error)
}

// TransactionView provides read-only access to snapshot data for rules and queries.
type TransactionView interface {
	ListFacilities() []Facility
	FindFacility(id string) (Facility, bool)
	ListRooms() []Room
	FindRoom(id string) (Room, bool)
	ListStrains() []Strain
	FindStrain(id string) (Strain, bool)
	ListPlantBatches() []PlantBatch
	FindPlantBatch(id string) (PlantBatch, bool)
	ListPlants() []Plant
	FindPlant(id string) (Plant, bool)
	// PlantsAt returns the plants occupying the slot with the given Coordinate.Key.
	PlantsAt(slotKey string) []Plant
	// PlantsInBatch returns every plant, active or not, referencing the batch.
	PlantsInBatch(batchID string) []Plant
	ListMetrcTags() []MetrcTag
	FindMetrcTag(tag string) (MetrcTag, bool)
	ListHarvests() []Harvest
	FindHarvest(id string) (Harvest, bool)
	// Events returns the event log in append order. Callers must not modify it.
	Events() []PlantEvent
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	// Version increases by one with every committed transaction.
	Version() uint64
	Close() error
}
