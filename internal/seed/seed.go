// Package seed loads facility layouts, strains and tag pools from YAML.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"growcore/internal/core"
	"growcore/pkg/domain"
)

// File is the top-level seed document.
type File struct {
	Facilities []Facility `yaml:"facilities"`
	Strains    []Strain   `yaml:"strains"`
	Tags       []string   `yaml:"tags"`
	TagType    string     `yaml:"tag_type"`
}

type Facility struct {
	Name          string `yaml:"name"`
	LicenseNumber string `yaml:"license_number"`
	Rooms         []Room `yaml:"rooms"`
}

type Room struct {
	Name   string `yaml:"name"`
	Layout Layout `yaml:"layout"`
}

type Layout struct {
	Kind           string         `yaml:"kind"`
	Floors         int            `yaml:"floors"`
	Rows           int            `yaml:"rows"`
	Cols           int            `yaml:"cols"`
	ZoneCapacity   int            `yaml:"zone_capacity"`
	ZoneCapacities map[string]int `yaml:"zone_capacities"`
	Racks          []Rack         `yaml:"racks"`
}

type Rack struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Floor int    `yaml:"floor"`
	Trays []Tray `yaml:"trays"`
}

type Tray struct {
	ID       string `yaml:"id"`
	Position int    `yaml:"position"`
	Capacity int    `yaml:"capacity"`
}

type Strain struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Inactive bool   `yaml:"inactive"`
}

// Summary counts what Apply created and what it found already present.
type Summary struct {
	Facilities  int
	Rooms       int
	Strains     int
	TagsCreated int
	TagsSkipped int
	Existing    int
}

// Decode parses a seed document. Unknown keys are rejected.
func Decode(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, errors.New("seed file is empty")
		}
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	for i, fac := range f.Facilities {
		for j, room := range fac.Rooms {
			if err := room.Layout.toDomain().Validate(); err != nil {
				return File{}, fmt.Errorf("facilities[%d].rooms[%d] %q: %w", i, j, room.Name, err)
			}
		}
	}
	return f, nil
}

func (l Layout) toDomain() domain.RoomLayout {
	out := domain.RoomLayout{
		Kind:           domain.LayoutKind(l.Kind),
		Floors:         l.Floors,
		Rows:           l.Rows,
		Cols:           l.Cols,
		ZoneCapacity:   l.ZoneCapacity,
		ZoneCapacities: l.ZoneCapacities,
	}
	if out.Kind == "" {
		out.Kind = domain.LayoutGrid
	}
	for _, r := range l.Racks {
		rack := domain.Rack{ID: r.ID, Name: r.Name, Floor: r.Floor}
		for _, t := range r.Trays {
			rack.Trays = append(rack.Trays, domain.Tray{ID: t.ID, Position: t.Position, Capacity: t.Capacity})
		}
		out.Racks = append(out.Racks, rack)
	}
	return out
}

// Apply creates everything in f that is not already present. Facilities and
// strains match by name; rooms match by name within their facility.
func Apply(ctx context.Context, svc *core.Service, f File, actor string) (Summary, error) {
	var sum Summary

	facilities, err := svc.ListFacilities(ctx)
	if err != nil {
		return sum, err
	}
	facilityByName := make(map[string]core.Facility, len(facilities))
	for _, fac := range facilities {
		facilityByName[fac.Name] = fac
	}
	for _, fac := range f.Facilities {
		existing, ok := facilityByName[fac.Name]
		if ok {
			sum.Existing++
		} else {
			existing, err = svc.CreateFacility(ctx, core.CreateFacilityInput{Name: fac.Name, LicenseNumber: fac.LicenseNumber, Actor: actor})
			if err != nil {
				return sum, fmt.Errorf("facility %q: %w", fac.Name, err)
			}
			facilityByName[fac.Name] = existing
			sum.Facilities++
		}
		rooms, err := svc.ListRooms(ctx, existing.ID)
		if err != nil {
			return sum, err
		}
		roomNames := make(map[string]struct{}, len(rooms))
		for _, r := range rooms {
			roomNames[r.Name] = struct{}{}
		}
		for _, room := range fac.Rooms {
			if _, ok := roomNames[room.Name]; ok {
				sum.Existing++
				continue
			}
			if _, err := svc.CreateRoom(ctx, core.CreateRoomInput{
				FacilityID: existing.ID,
				Name:       room.Name,
				Layout:     room.Layout.toDomain(),
				Actor:      actor,
			}); err != nil {
				return sum, fmt.Errorf("room %q: %w", room.Name, err)
			}
			sum.Rooms++
		}
	}

	strains, err := svc.ListStrains(ctx)
	if err != nil {
		return sum, err
	}
	strainNames := make(map[string]struct{}, len(strains))
	for _, st := range strains {
		strainNames[st.Name] = struct{}{}
	}
	for _, st := range f.Strains {
		if _, ok := strainNames[st.Name]; ok {
			sum.Existing++
			continue
		}
		created, err := svc.CreateStrain(ctx, core.CreateStrainInput{Name: st.Name, Category: st.Category, Actor: actor})
		if err != nil {
			return sum, fmt.Errorf("strain %q: %w", st.Name, err)
		}
		if st.Inactive {
			if _, err := svc.SetStrainActive(ctx, core.SetStrainActiveInput{StrainID: created.ID, Active: false, Actor: actor}); err != nil {
				return sum, fmt.Errorf("strain %q: %w", st.Name, err)
			}
		}
		strainNames[st.Name] = struct{}{}
		sum.Strains++
	}

	if len(f.Tags) > 0 {
		res, err := svc.ImportMetrcTags(ctx, core.ImportTagsInput{Tags: f.Tags, TagType: f.TagType, Actor: actor})
		if err != nil {
			return sum, fmt.Errorf("tags: %w", err)
		}
		sum.TagsCreated = res.CreatedCount
		sum.TagsSkipped = res.ErrorCount
	}
	return sum, nil
}
