package core_test

import (
	"context"
	"errors"
	"testing"

	"growcore/internal/core"
	"growcore/pkg/domain"
)

func TestImportDuplicateScenario(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ImportMetrcTags(context.Background(), core.ImportTagsInput{Tags: []string{"T1", "T1", "T2"}})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.CreatedCount != 2 || res.ErrorCount != 1 {
		t.Fatalf("expected 2 created / 1 error, got %+v", res)
	}
	if res.Errors[0].Index != 1 || res.Errors[0].Code != core.CodeTagDuplicate {
		t.Fatalf("duplicate should fail on its second occurrence: %+v", res.Errors)
	}
}

func TestImportPartialFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importTags(t, "1A4000000000000000000001")

	res, err := f.svc.ImportMetrcTags(ctx, core.ImportTagsInput{
		Tags:    []string{" 1a4000000000000000000002 ", "bad tag!", "1A4000000000000000000001", "", "1A4000000000000000000003"},
		TagType: "package_tag",
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.CreatedCount != 2 || res.ErrorCount != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	codes := map[int]string{}
	for _, e := range res.Errors {
		codes[e.Index] = e.Code
	}
	if codes[1] != core.CodeInvalidInput || codes[2] != core.CodeTagDuplicate || codes[3] != core.CodeInvalidInput {
		t.Fatalf("unexpected per-entry codes %+v", codes)
	}
	if tag := f.tag(t, "1A4000000000000000000002"); tag.TagType != "package_tag" || tag.Status != domain.TagStatusAvailable {
		t.Fatalf("unexpected imported tag %+v", tag)
	}

	available, err := f.svc.AvailableTags(ctx, domain.TagTypePlant)
	if err != nil || len(available) != 1 {
		t.Fatalf("expected one available plant tag, got %d (%v)", len(available), err)
	}
	all, _ := f.svc.AvailableTags(ctx, "")
	if len(all) != 3 {
		t.Fatalf("expected three available tags of any type, got %d", len(all))
	}

	if _, err := f.svc.ImportMetrcTags(ctx, core.ImportTagsInput{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty import should be rejected, got %v", err)
	}
}

func TestTagReassignmentScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importTags(t, "T1", "T2")
	p1 := f.place(t, 0, 0)
	p2 := f.place(t, 0, 1)

	if _, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p1.ID, Tag: "T1"}); err != nil {
		t.Fatalf("tag p1: %v", err)
	}
	_, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p2.ID, Tag: "T1"})
	if !errors.Is(err, domain.ErrTagUnavailable) {
		t.Fatalf("expected ErrTagUnavailable, got %v", err)
	}
	if got := f.plant(t, p2.ID); got.Tag != nil {
		t.Fatalf("p2 should still be untagged")
	}

	res, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p1.ID, Tag: "T2"})
	if err != nil {
		t.Fatalf("retag p1: %v", err)
	}
	if len(res.Tags) != 2 {
		t.Fatalf("retag should report both tags, got %+v", res.Tags)
	}
	if tag := f.tag(t, "T1"); tag.Status != domain.TagStatusAvailable || tag.PlantID != nil {
		t.Fatalf("T1 not released: %+v", tag)
	}
	if _, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p2.ID, Tag: "T1"}); err != nil {
		t.Fatalf("tag p2 with released T1: %v", err)
	}

	tags, _ := f.svc.ListMetrcTags(ctx, core.TagFilter{Status: domain.TagStatusAssigned})
	holders := map[string]string{}
	for _, tag := range tags {
		holders[tag.Tag] = *tag.PlantID
	}
	if holders["T1"] != p2.ID || holders["T2"] != p1.ID {
		t.Fatalf("unexpected bindings %+v", holders)
	}
}

func TestTagPlantWithHeldTagIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importTags(t, "T1")
	p := f.place(t, 0, 0)
	if _, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p.ID, Tag: "T1"}); err != nil {
		t.Fatalf("tag: %v", err)
	}
	res, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p.ID, Tag: "t1"})
	if err != nil || len(res.Events) != 0 {
		t.Fatalf("re-tagging with the held tag should be a no-op: %v %+v", err, res.Events)
	}
}

func TestPlaceWithMetrcLabelBindsTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importTags(t, "T9")
	res, err := f.svc.PlacePlant(ctx, core.PlacePlantInput{
		Target:     core.Target{RoomID: f.grid.ID},
		StrainID:   f.strain.ID,
		MetrcLabel: "t9",
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Plant.Tag == nil || *res.Plant.Tag != "T9" {
		t.Fatalf("plant not tagged: %+v", res.Plant)
	}
	if len(res.Tags) != 1 || res.Tags[0].Status != domain.TagStatusAssigned || *res.Tags[0].PlantID != res.Plant.ID {
		t.Fatalf("tag snapshot %+v", res.Tags)
	}
	if res.Events[0].Metadata.MetrcTag != "T9" {
		t.Fatalf("placed event should carry the tag: %+v", res.Events[0].Metadata)
	}
}

func TestPlantBindingRequiresPlantTagType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.ImportMetrcTags(ctx, core.ImportTagsInput{Tags: []string{"PKG-1"}, TagType: "package_tag"}); err != nil {
		t.Fatalf("import: %v", err)
	}
	p := f.place(t, 0, 0)
	if _, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p.ID, Tag: "PKG-1"}); !errors.Is(err, domain.ErrTagUnavailable) {
		t.Fatalf("expected ErrTagUnavailable binding a package tag, got %v", err)
	}
	_, err := f.svc.PlacePlant(ctx, core.PlacePlantInput{
		Target:     core.Target{RoomID: f.grid.ID, Floor: 1, Row: 0, Col: 1},
		StrainID:   f.strain.ID,
		MetrcLabel: "PKG-1",
	})
	if !errors.Is(err, domain.ErrTagUnavailable) {
		t.Fatalf("expected ErrTagUnavailable placing with a package tag, got %v", err)
	}
	if tag := f.tag(t, "PKG-1"); tag.Status != domain.TagStatusAvailable || tag.PlantID != nil {
		t.Fatalf("package tag must stay in the pool: %+v", tag)
	}
	if got := f.plant(t, p.ID); got.Tag != nil {
		t.Fatalf("plant should stay untagged: %+v", got)
	}
	if z := f.zone(t, 0, 1); len(z.Occupants) != 0 {
		t.Fatalf("rejected placement must not occupy the zone: %+v", z)
	}
}

func TestUntagAndRetire(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importTags(t, "T1", "T2")
	p := f.place(t, 0, 0)

	if _, err := f.svc.UntagPlant(ctx, core.PlantActionInput{PlantID: p.ID}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("untagging an untagged plant: expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p.ID, Tag: "T1"}); err != nil {
		t.Fatalf("tag: %v", err)
	}
	if _, err := f.svc.RetireMetrcTag(ctx, core.RetireTagInput{Tag: "T1"}); !errors.Is(err, domain.ErrTagUnavailable) {
		t.Fatalf("retiring an assigned tag: expected ErrTagUnavailable, got %v", err)
	}
	res, err := f.svc.UntagPlant(ctx, core.PlantActionInput{PlantID: p.ID})
	if err != nil {
		t.Fatalf("untag: %v", err)
	}
	if res.Plant.Tag != nil || res.Events[0].EventType != domain.EventUntagged || res.Events[0].Metadata.PreviousTag != "T1" {
		t.Fatalf("unexpected untag result %+v", res)
	}

	retired, err := f.svc.RetireMetrcTag(ctx, core.RetireTagInput{Tag: "T2"})
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if retired.Tags[0].Status != domain.TagStatusRetired {
		t.Fatalf("tag not retired: %+v", retired.Tags)
	}
	_, err = f.svc.TagPlant(ctx, core.TagPlantInput{PlantID: p.ID, Tag: "T2"})
	if !errors.Is(err, domain.ErrTagUnavailable) {
		t.Fatalf("retired tag must not be assignable, got %v", err)
	}
	if _, err := f.svc.GetMetrcTag(ctx, "T404"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
