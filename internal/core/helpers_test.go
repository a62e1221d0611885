package core_test

import (
	"context"
	"testing"

	"growcore/internal/core"
	"growcore/pkg/domain"
)

// fixture is a facility with a 1-floor 2x3 grid room (capacity 1 per zone),
// a rack room with trays TRAY-A (capacity 2) and TRAY-B (capacity 1), and
// one active strain.
type fixture struct {
	svc      *core.Service
	facility core.Facility
	grid     core.Room
	racks    core.Room
	strain   core.Strain
}

func newFixture(t *testing.T, opts ...core.ServiceOption) *fixture {
	t.Helper()
	ctx := context.Background()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), opts...)
	facility, err := svc.CreateFacility(ctx, core.CreateFacilityInput{Name: "North Site", LicenseNumber: "LIC-1"})
	if err != nil {
		t.Fatalf("create facility: %v", err)
	}
	grid, err := svc.CreateRoom(ctx, core.CreateRoomInput{
		FacilityID: facility.ID,
		Name:       "Veg 1",
		Layout:     domain.GridLayout(1, 2, 3, 1),
	})
	if err != nil {
		t.Fatalf("create grid room: %v", err)
	}
	racks, err := svc.CreateRoom(ctx, core.CreateRoomInput{
		FacilityID: facility.ID,
		Name:       "Clone Room",
		Layout: domain.RackTrayLayout(domain.Rack{
			ID:    "RACK-1",
			Name:  "Rack 1",
			Floor: 1,
			Trays: []domain.Tray{
				{ID: "TRAY-A", Position: 0, Capacity: 2},
				{ID: "TRAY-B", Position: 1, Capacity: 1},
			},
		}),
	})
	if err != nil {
		t.Fatalf("create rack room: %v", err)
	}
	strain, err := svc.CreateStrain(ctx, core.CreateStrainInput{Name: "Blue Dream", Category: "hybrid"})
	if err != nil {
		t.Fatalf("create strain: %v", err)
	}
	return &fixture{svc: svc, facility: facility, grid: grid, racks: racks, strain: strain}
}

func (f *fixture) place(t *testing.T, row, col int) core.Plant {
	t.Helper()
	res, err := f.svc.PlacePlant(context.Background(), core.PlacePlantInput{
		Target:   core.Target{RoomID: f.grid.ID, Floor: 1, Row: row, Col: col},
		StrainID: f.strain.ID,
	})
	if err != nil {
		t.Fatalf("place plant at %d,%d: %v", row, col, err)
	}
	return *res.Plant
}

func (f *fixture) batch(t *testing.T, initial int) core.PlantBatch {
	t.Helper()
	res, err := f.svc.CreatePlantBatch(context.Background(), core.CreatePlantBatchInput{
		Name:         "Batch",
		StrainID:     f.strain.ID,
		BatchType:    "clone",
		InitialCount: initial,
	})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if len(res.Batches) != 1 {
		t.Fatalf("expected batch in result, got %+v", res)
	}
	return res.Batches[0]
}

func (f *fixture) importTags(t *testing.T, tags ...string) {
	t.Helper()
	res, err := f.svc.ImportMetrcTags(context.Background(), core.ImportTagsInput{Tags: tags})
	if err != nil {
		t.Fatalf("import tags: %v", err)
	}
	if res.ErrorCount != 0 {
		t.Fatalf("unexpected import errors: %+v", res.Errors)
	}
}

func (f *fixture) plant(t *testing.T, id string) core.Plant {
	t.Helper()
	p, err := f.svc.GetPlant(context.Background(), id)
	if err != nil {
		t.Fatalf("get plant %s: %v", id, err)
	}
	return p
}

func (f *fixture) tag(t *testing.T, serial string) core.MetrcTag {
	t.Helper()
	tag, err := f.svc.GetMetrcTag(context.Background(), serial)
	if err != nil {
		t.Fatalf("get tag %s: %v", serial, err)
	}
	return tag
}

func (f *fixture) zone(t *testing.T, row, col int) core.Zone {
	t.Helper()
	z, err := f.svc.ZoneAt(context.Background(), f.grid.ID, 1, row, col)
	if err != nil {
		t.Fatalf("zone %d,%d: %v", row, col, err)
	}
	return z
}

func eventTypes(events []core.PlantEvent) []domain.EventType {
	out := make([]domain.EventType, len(events))
	for i, e := range events {
		out[i] = e.EventType
	}
	return out
}
