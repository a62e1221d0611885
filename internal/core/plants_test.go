package core_test

import (
	"context"
	"errors"
	"testing"

	"growcore/internal/core"
	"growcore/pkg/domain"
)

func TestPlaceMovePlaceScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p1 := f.place(t, 0, 0)
	if p1.Status != domain.PlantStatusActive || p1.Phase != domain.PhaseImmature {
		t.Fatalf("unexpected new plant %+v", p1)
	}

	_, err := f.svc.PlacePlant(ctx, core.PlacePlantInput{
		Target:   core.Target{RoomID: f.grid.ID, Floor: 1, Row: 0, Col: 0},
		StrainID: f.strain.ID,
	})
	if !errors.Is(err, domain.ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}
	if core.ErrorCode(err) != core.CodeSlotFull {
		t.Fatalf("expected SLOT_FULL code, got %q", core.ErrorCode(err))
	}
	plants, err := f.svc.ListPlants(ctx, core.PlantFilter{})
	if err != nil || len(plants) != 1 {
		t.Fatalf("failed placement must leave state unchanged: %v %d", err, len(plants))
	}

	res, err := f.svc.MovePlant(ctx, core.MovePlantInput{PlantID: p1.ID, Target: core.Target{RoomID: f.grid.ID, Floor: 1, Row: 0, Col: 1}})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if len(res.Zones) != 2 {
		t.Fatalf("move should report source and target zones, got %+v", res.Zones)
	}
	if z := f.zone(t, 0, 0); len(z.Occupants) != 0 {
		t.Fatalf("source zone still occupied: %+v", z)
	}
	if z := f.zone(t, 0, 1); len(z.Occupants) != 1 || z.Occupants[0] != p1.ID {
		t.Fatalf("target zone not occupied by p1: %+v", z)
	}

	p2 := f.place(t, 0, 0)
	if p2.Coordinate == nil || p2.Coordinate.Row != 0 || p2.Coordinate.Col != 0 {
		t.Fatalf("p2 not at 0,0: %+v", p2.Coordinate)
	}
}

func TestMovedPlantOccupiesExactlyOneZone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.place(t, 1, 2)
	if _, err := f.svc.MovePlant(ctx, core.MovePlantInput{PlantID: p.ID, Target: core.Target{RoomID: f.grid.ID, Row: 0, Col: 0}}); err != nil {
		t.Fatalf("move: %v", err)
	}
	view, err := f.svc.FloorView(ctx, f.grid.ID, 1)
	if err != nil {
		t.Fatalf("floor view: %v", err)
	}
	seen := 0
	for key, zone := range view.Grid {
		for _, id := range zone.Occupants {
			if id == p.ID {
				seen++
				if key != core.GridKey(0, 0) {
					t.Fatalf("plant found in %s", key)
				}
			}
		}
	}
	if seen != 1 {
		t.Fatalf("plant appears in %d zones", seen)
	}
}

func TestMoveToOwnSlotIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.place(t, 0, 0)
	before, _ := f.svc.EventCount(ctx)
	res, err := f.svc.MovePlant(ctx, core.MovePlantInput{PlantID: p.ID, Target: core.Target{RoomID: f.grid.ID, Floor: 1, Row: 0, Col: 0}})
	if err != nil {
		t.Fatalf("self move into a full zone must succeed: %v", err)
	}
	if len(res.Events) != 0 {
		t.Fatalf("self move should not emit events, got %+v", res.Events)
	}
	after, _ := f.svc.EventCount(ctx)
	if before != after {
		t.Fatalf("event log grew from %d to %d", before, after)
	}
}

func TestMoveIntoFullSlotLeavesPlantInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.place(t, 0, 0)
	f.place(t, 0, 1)
	_, err := f.svc.MovePlant(ctx, core.MovePlantInput{PlantID: a.ID, Target: core.Target{RoomID: f.grid.ID, Row: 0, Col: 1}})
	if !errors.Is(err, domain.ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}
	if got := f.plant(t, a.ID); got.Coordinate.Col != 0 {
		t.Fatalf("plant moved despite failure: %+v", got.Coordinate)
	}
}

func TestPlacementValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inactive, err := f.svc.CreateStrain(ctx, core.CreateStrainInput{Name: "Retired"})
	if err != nil {
		t.Fatalf("create strain: %v", err)
	}
	if _, err := f.svc.SetStrainActive(ctx, core.SetStrainActiveInput{StrainID: inactive.ID, Active: false}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	cases := []struct {
		name string
		in   core.PlacePlantInput
		want error
	}{
		{"row out of bounds", core.PlacePlantInput{Target: core.Target{RoomID: f.grid.ID, Row: 2, Col: 0}, StrainID: f.strain.ID}, domain.ErrInvalidCoordinate},
		{"floor out of bounds", core.PlacePlantInput{Target: core.Target{RoomID: f.grid.ID, Floor: 2}, StrainID: f.strain.ID}, domain.ErrInvalidCoordinate},
		{"unknown room", core.PlacePlantInput{Target: core.Target{RoomID: "missing"}, StrainID: f.strain.ID}, domain.ErrInvalidCoordinate},
		{"tray in grid room", core.PlacePlantInput{Target: core.Target{RoomID: f.grid.ID, TrayID: "TRAY-A"}, StrainID: f.strain.ID}, domain.ErrInvalidCoordinate},
		{"unknown tray", core.PlacePlantInput{Target: core.Target{TrayID: "TRAY-Z"}, StrainID: f.strain.ID}, domain.ErrInvalidCoordinate},
		{"no target", core.PlacePlantInput{StrainID: f.strain.ID}, domain.ErrInvalidInput},
		{"inactive strain", core.PlacePlantInput{Target: core.Target{RoomID: f.grid.ID}, StrainID: inactive.ID}, domain.ErrStrainInactive},
		{"unknown strain", core.PlacePlantInput{Target: core.Target{RoomID: f.grid.ID}, StrainID: "nope"}, domain.ErrNotFound},
		{"unknown batch", core.PlacePlantInput{Target: core.Target{RoomID: f.grid.ID}, PlantBatchID: "nope"}, domain.ErrBatchNotFound},
		{"bad phase", core.PlacePlantInput{Target: core.Target{RoomID: f.grid.ID}, StrainID: f.strain.ID, GrowthPhase: "seedling"}, domain.ErrInvalidInput},
		{"both labels", core.PlacePlantInput{Target: core.Target{RoomID: f.grid.ID}, StrainID: f.strain.ID, CustomLabel: "x", MetrcLabel: "T1"}, domain.ErrInvalidInput},
		{"unknown tag", core.PlacePlantInput{Target: core.Target{RoomID: f.grid.ID}, StrainID: f.strain.ID, MetrcLabel: "T404"}, domain.ErrTagUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.PlacePlant(ctx, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	plants, _ := f.svc.ListPlants(ctx, core.PlantFilter{})
	if len(plants) != 0 {
		t.Fatalf("rejected placements left %d plants", len(plants))
	}
}

func TestPlaceInTrayByTrayID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res, err := f.svc.PlacePlant(ctx, core.PlacePlantInput{
		Target:      core.Target{TrayID: "TRAY-A"},
		StrainID:    f.strain.ID,
		GrowthPhase: "vegetative",
		CustomLabel: "mother cut #4",
	})
	if err != nil {
		t.Fatalf("place in tray: %v", err)
	}
	c := res.Plant.Coordinate
	if c.RoomID != f.racks.ID || c.RackID != "RACK-1" || c.TrayID != "TRAY-A" || c.Floor != 1 {
		t.Fatalf("unexpected tray coordinate %+v", c)
	}
	if res.Plant.Phase != domain.PhaseVegetative || res.Plant.Label == nil || *res.Plant.Label != "mother cut #4" {
		t.Fatalf("unexpected plant %+v", res.Plant)
	}
	if _, err := f.svc.PlacePlant(ctx, core.PlacePlantInput{Target: core.Target{RoomID: f.racks.ID, TrayID: "TRAY-B"}, StrainID: f.strain.ID}); err != nil {
		t.Fatalf("place in TRAY-B: %v", err)
	}
	_, err = f.svc.PlacePlant(ctx, core.PlacePlantInput{Target: core.Target{TrayID: "TRAY-B"}, StrainID: f.strain.ID})
	if !errors.Is(err, domain.ErrSlotFull) {
		t.Fatalf("expected TRAY-B full, got %v", err)
	}
	if _, err := f.svc.MovePlant(ctx, core.MovePlantInput{PlantID: res.Plant.ID, Target: core.Target{RoomID: f.grid.ID, Row: 1, Col: 1}}); err != nil {
		t.Fatalf("move tray to grid: %v", err)
	}
}

func TestPhaseTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.place(t, 0, 0)

	for _, want := range []domain.GrowthPhase{domain.PhaseVegetative, domain.PhaseFlowering} {
		res, err := f.svc.AdvancePlantPhase(ctx, core.PlantActionInput{PlantID: p.ID})
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		if res.Plant.Phase != want {
			t.Fatalf("expected %s, got %s", want, res.Plant.Phase)
		}
		if res.Events[0].Metadata.Correction {
			t.Fatalf("forward phase change flagged as correction: %+v", res.Events[0].Metadata)
		}
	}
	_, err := f.svc.AdvancePlantPhase(ctx, core.PlantActionInput{PlantID: p.ID})
	if !errors.Is(err, domain.ErrInvalidPhaseTransition) {
		t.Fatalf("expected ErrInvalidPhaseTransition past flowering, got %v", err)
	}

	res, err := f.svc.SetPlantPhase(ctx, core.SetPhaseInput{PlantID: p.ID, Phase: "vegetative"})
	if err != nil {
		t.Fatalf("set phase backwards for a correction: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Metadata.FromPhase != domain.PhaseFlowering || res.Events[0].Metadata.ToPhase != domain.PhaseVegetative {
		t.Fatalf("unexpected phase event %+v", res.Events)
	}
	if !res.Events[0].Metadata.Correction {
		t.Fatalf("backward phase change should be flagged as a correction: %+v", res.Events[0].Metadata)
	}
	res, err = f.svc.SetPlantPhase(ctx, core.SetPhaseInput{PlantID: p.ID, Phase: "vegetative"})
	if err != nil || len(res.Events) != 0 {
		t.Fatalf("same phase should be a no-op: %v %+v", err, res.Events)
	}
}

func TestTerminalPlantsRejectMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importTags(t, "T1")
	p := f.place(t, 0, 0)
	if _, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p.ID, Tag: "t1"}); err != nil {
		t.Fatalf("tag: %v", err)
	}

	res, err := f.svc.DestroyPlant(ctx, core.DestroyInput{PlantID: p.ID, Reason: "  mold  "})
	if err != nil {
		t.Fatalf("destroy: %v", err)
	}
	got := res.Plant
	if got.Status != domain.PlantStatusDestroyed || got.Coordinate != nil || got.Tag != nil || *got.DestroyReason != "mold" {
		t.Fatalf("unexpected destroyed plant %+v", got)
	}
	ev := res.Events[0]
	if ev.Metadata.Reason != "mold" || ev.Metadata.PreviousTag != "T1" || ev.Metadata.From == nil {
		t.Fatalf("unexpected destroyed event %+v", ev.Metadata)
	}
	if tag := f.tag(t, "T1"); tag.Status != domain.TagStatusAvailable || tag.PlantID != nil {
		t.Fatalf("tag not released: %+v", tag)
	}
	if z := f.zone(t, 0, 0); len(z.Occupants) != 0 {
		t.Fatalf("slot not vacated: %+v", z)
	}

	attempts := map[string]func() error{
		"destroy": func() error {
			_, err := f.svc.DestroyPlant(ctx, core.DestroyInput{PlantID: p.ID, Reason: "again"})
			return err
		},
		"harvest": func() error {
			_, err := f.svc.HarvestPlant(ctx, core.PlantActionInput{PlantID: p.ID})
			return err
		},
		"move": func() error {
			_, err := f.svc.MovePlant(ctx, core.MovePlantInput{PlantID: p.ID, Target: core.Target{RoomID: f.grid.ID, Row: 1}})
			return err
		},
		"tag": func() error {
			_, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p.ID, Tag: "T1"})
			return err
		},
		"phase": func() error {
			_, err := f.svc.AdvancePlantPhase(ctx, core.PlantActionInput{PlantID: p.ID})
			return err
		},
	}
	for name, attempt := range attempts {
		if err := attempt(); !errors.Is(err, domain.ErrPlantNotActive) {
			t.Fatalf("%s on destroyed plant: expected ErrPlantNotActive, got %v", name, err)
		}
	}

	if _, err := f.svc.NotePlant(ctx, core.NotePlantInput{PlantID: p.ID, Note: "disposed per SOP"}); err != nil {
		t.Fatalf("notes are allowed on terminal plants: %v", err)
	}
}

func TestDestroyRequiresReason(t *testing.T) {
	f := newFixture(t)
	p := f.place(t, 0, 0)
	_, err := f.svc.DestroyPlant(context.Background(), core.DestroyInput{PlantID: p.ID, Reason: "   "})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got := f.plant(t, p.ID); !got.IsActive() {
		t.Fatalf("plant changed despite rejected destroy")
	}
}

func TestBatchCountScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room, err := f.svc.CreateRoom(ctx, core.CreateRoomInput{FacilityID: f.facility.ID, Name: "Flower", Layout: domain.GridLayout(1, 1, 1, 10)})
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	batch := f.batch(t, 10)
	if batch.ActivePlantCount != 0 || batch.InitialCount != 10 {
		t.Fatalf("unexpected new batch %+v", batch)
	}

	var ids []string
	for i := 0; i < 10; i++ {
		res, err := f.svc.PlacePlant(ctx, core.PlacePlantInput{Target: core.Target{RoomID: room.ID}, PlantBatchID: batch.ID})
		if err != nil {
			t.Fatalf("place %d: %v", i, err)
		}
		if len(res.Batches) != 1 || res.Batches[0].ActivePlantCount != i+1 {
			t.Fatalf("place %d: batch snapshot %+v", i, res.Batches)
		}
		if res.Plant.StrainID != f.strain.ID {
			t.Fatalf("plant should inherit the batch strain")
		}
		ids = append(ids, res.Plant.ID)
	}
	if _, err := f.svc.DestroyPlant(ctx, core.DestroyInput{PlantID: ids[0], Reason: "hermie"}); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	got, err := f.svc.GetPlantBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if got.ActivePlantCount != 9 {
		t.Fatalf("expected 9 active plants, got %d", got.ActivePlantCount)
	}
	members, _ := f.svc.ListPlants(ctx, core.PlantFilter{PlantBatchID: batch.ID, Status: domain.PlantStatusActive})
	if len(members) != got.ActivePlantCount {
		t.Fatalf("count %d does not match %d live members", got.ActivePlantCount, len(members))
	}
}

func TestPlaceRejectsStrainMismatchWithBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, _ := f.svc.CreateStrain(ctx, core.CreateStrainInput{Name: "OG"})
	batch := f.batch(t, 1)
	_, err := f.svc.PlacePlant(ctx, core.PlacePlantInput{Target: core.Target{RoomID: f.grid.ID}, StrainID: other.ID, PlantBatchID: batch.ID})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPlantEventsMatchOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importTags(t, "T1", "T2")
	p := f.place(t, 0, 0)
	ops := []func() error{
		func() error {
			_, err := f.svc.MovePlant(ctx, core.MovePlantInput{PlantID: p.ID, Target: core.Target{RoomID: f.grid.ID, Row: 1, Col: 2}})
			return err
		},
		func() error {
			_, err := f.svc.AdvancePlantPhase(ctx, core.PlantActionInput{PlantID: p.ID})
			return err
		},
		func() error {
			_, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p.ID, Tag: "T1"})
			return err
		},
		func() error {
			_, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p.ID, Tag: "T2"})
			return err
		},
		func() error {
			_, err := f.svc.NotePlant(ctx, core.NotePlantInput{PlantID: p.ID, Note: "topped"})
			return err
		},
		func() error {
			_, err := f.svc.HarvestPlant(ctx, core.PlantActionInput{PlantID: p.ID})
			return err
		},
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("op %d: %v", i, err)
		}
	}

	events, err := f.svc.PlantEvents(ctx, p.ID)
	if err != nil {
		t.Fatalf("plant events: %v", err)
	}
	want := []domain.EventType{
		domain.EventPlaced, domain.EventMoved, domain.EventPhaseChanged,
		domain.EventTagged, domain.EventTagged, domain.EventNoted, domain.EventHarvested,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], got[i])
		}
		if i > 0 && events[i].Seq <= events[i-1].Seq {
			t.Fatalf("events out of order: %d then %d", events[i-1].Seq, events[i].Seq)
		}
	}
	moved := events[1].Metadata
	if moved.From == nil || moved.To == nil || moved.From.Row != 0 || moved.To.Row != 1 || moved.To.Col != 2 {
		t.Fatalf("moved event has wrong from/to: %+v", moved)
	}
	if events[4].Metadata.MetrcTag != "T2" || events[4].Metadata.PreviousTag != "T1" {
		t.Fatalf("retag event %+v", events[4].Metadata)
	}
	if events[5].Note == nil || *events[5].Note != "topped" {
		t.Fatalf("note event %+v", events[5])
	}
	if events[6].Metadata.HarvestID == "" || events[6].Metadata.PreviousTag != "T2" {
		t.Fatalf("harvest event %+v", events[6].Metadata)
	}
	for _, e := range events {
		if e.Actor != core.DefaultActor {
			t.Fatalf("expected default actor, got %q", e.Actor)
		}
	}

	if _, err := f.svc.PlantEvents(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPlantsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.place(t, 0, 0)
	f.place(t, 0, 1)
	if _, err := f.svc.PlacePlant(ctx, core.PlacePlantInput{Target: core.Target{TrayID: "TRAY-A"}, StrainID: f.strain.ID}); err != nil {
		t.Fatalf("place in tray: %v", err)
	}
	if _, err := f.svc.DestroyPlant(ctx, core.DestroyInput{PlantID: a.ID, Reason: "pests"}); err != nil {
		t.Fatalf("destroy: %v", err)
	}

	cases := []struct {
		name   string
		filter core.PlantFilter
		want   int
	}{
		{"all", core.PlantFilter{}, 3},
		{"grid room", core.PlantFilter{RoomID: f.grid.ID}, 1},
		{"rack room", core.PlantFilter{RoomID: f.racks.ID}, 1},
		{"active", core.PlantFilter{Status: domain.PlantStatusActive}, 2},
		{"destroyed", core.PlantFilter{Status: domain.PlantStatusDestroyed}, 1},
	}
	for _, tc := range cases {
		got, err := f.svc.ListPlants(ctx, tc.filter)
		if err != nil || len(got) != tc.want {
			t.Fatalf("%s: expected %d plants, got %d (%v)", tc.name, tc.want, len(got), err)
		}
	}
	if _, err := f.svc.GetPlant(ctx, "missing"); core.ErrorCode(err) != core.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
