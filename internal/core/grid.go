package core

import (
	"context"
	"fmt"
	"strconv"

	"growcore/pkg/domain"
)

// Zone is the occupancy read model of one grid zone or tray.
type Zone struct {
	Coordinate Coordinate `json:"coordinate"`
	Capacity   int        `json:"capacity"`
	Occupants  []string   `json:"occupants"`
	Available  int        `json:"available"`
}

// HasCapacity reports whether another plant fits in the zone.
func (z Zone) HasCapacity() bool {
	return len(z.Occupants) < z.Capacity
}

func zoneFor(view TransactionView, spec domain.ZoneSpec) Zone {
	plants := view.PlantsAt(spec.Coordinate.Key())
	occupants := make([]string, 0, len(plants))
	for _, p := range plants {
		occupants = append(occupants, p.ID)
	}
	available := spec.Capacity - len(occupants)
	if available < 0 {
		available = 0
	}
	return Zone{Coordinate: spec.Coordinate, Capacity: spec.Capacity, Occupants: occupants, Available: available}
}

// RackView is one rack of a rack/tray floor.
type RackView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Trays []Zone `json:"trays"`
}

// FloorView is the occupancy of every placeable slot on one floor. Grid rooms
// fill Rows, Cols and Grid (keyed "row,col"); rack rooms fill Racks.
type FloorView struct {
	RoomID  string            `json:"room_id"`
	Floor   int               `json:"floor"`
	Kind    domain.LayoutKind `json:"kind"`
	Rows    int               `json:"rows,omitempty"`
	Cols    int               `json:"cols,omitempty"`
	Grid    map[string]Zone   `json:"grid,omitempty"`
	Racks   []RackView        `json:"racks,omitempty"`
	Version uint64            `json:"version"`
}

// GridKey is the FloorView.Grid key of a zone.
func GridKey(row, col int) string {
	return strconv.Itoa(row) + "," + strconv.Itoa(col)
}

func (v FloorView) clone() FloorView {
	cp := v
	if v.Grid != nil {
		cp.Grid = make(map[string]Zone, len(v.Grid))
		for k, z := range v.Grid {
			z.Occupants = append([]string(nil), z.Occupants...)
			cp.Grid[k] = z
		}
	}
	if v.Racks != nil {
		cp.Racks = make([]RackView, len(v.Racks))
		for i, rack := range v.Racks {
			trays := make([]Zone, len(rack.Trays))
			for j, z := range rack.Trays {
				z.Occupants = append([]string(nil), z.Occupants...)
				trays[j] = z
			}
			cp.Racks[i] = RackView{ID: rack.ID, Name: rack.Name, Trays: trays}
		}
	}
	return cp
}

type cachedFloorView struct {
	version uint64
	view    FloorView
}

// FloorView returns the occupancy of one floor of a room. Views are cached per
// store version; they are for display and never feed a write decision.
func (s *Service) FloorView(ctx context.Context, roomID string, floor int) (FloorView, error) {
	var out FloorView
	err := s.run(ctx, "floor_view", func(ctx context.Context) error {
		key := roomID + ":" + strconv.Itoa(floor)
		version := s.store.Version()
		if s.views != nil {
			if cached, ok := s.views.Get(key); ok {
				if entry := cached.(cachedFloorView); entry.version == version {
					out = entry.view.clone()
					return nil
				}
			}
		}
		err := s.store.View(ctx, func(view TransactionView) error {
			fv, err := buildFloorView(view, roomID, floor)
			if err != nil {
				return err
			}
			out = fv
			return nil
		})
		if err != nil {
			return err
		}
		out.Version = version
		if s.views != nil {
			s.views.SetDefault(key, cachedFloorView{version: version, view: out.clone()})
		}
		return nil
	})
	return out, err
}

func buildFloorView(view TransactionView, roomID string, floor int) (FloorView, error) {
	room, ok := view.FindRoom(roomID)
	if !ok {
		return FloorView{}, domain.NotFoundError{Entity: EntityRoom, ID: roomID}
	}
	slots, err := room.Layout.Slots(room.ID, floor)
	if err != nil {
		return FloorView{}, err
	}
	fv := FloorView{RoomID: room.ID, Floor: floor, Kind: room.Layout.Kind}
	switch room.Layout.Kind {
	case domain.LayoutGrid:
		fv.Rows = room.Layout.Rows
		fv.Cols = room.Layout.Cols
		fv.Grid = make(map[string]Zone, len(slots))
		for _, spec := range slots {
			fv.Grid[GridKey(spec.Coordinate.Row, spec.Coordinate.Col)] = zoneFor(view, spec)
		}
	case domain.LayoutRackTray:
		index := make(map[string]int)
		for _, rack := range room.Layout.Racks {
			if rack.Floor != floor {
				continue
			}
			index[rack.ID] = len(fv.Racks)
			fv.Racks = append(fv.Racks, RackView{ID: rack.ID, Name: rack.Name, Trays: []Zone{}})
		}
		for _, spec := range slots {
			i := index[spec.Coordinate.RackID]
			fv.Racks[i].Trays = append(fv.Racks[i].Trays, zoneFor(view, spec))
		}
	}
	return fv, nil
}

// ZoneAt returns the zone at a grid coordinate.
func (s *Service) ZoneAt(ctx context.Context, roomID string, floor, row, col int) (Zone, error) {
	return s.SlotAt(ctx, Coordinate{RoomID: roomID, Floor: floor, Row: row, Col: col})
}

// SlotAt returns the zone or tray addressed by a coordinate.
func (s *Service) SlotAt(ctx context.Context, c Coordinate) (Zone, error) {
	var out Zone
	err := s.view(ctx, "slot_at", func(view TransactionView) error {
		room, ok := view.FindRoom(c.RoomID)
		if !ok {
			return fmt.Errorf("%w: %w", domain.ErrInvalidCoordinate, domain.NotFoundError{Entity: EntityRoom, ID: c.RoomID})
		}
		spec, err := room.Layout.Resolve(c)
		if err != nil {
			return err
		}
		out = zoneFor(view, spec)
		return nil
	})
	return out, err
}

// Target addresses a placement slot: RoomID with Floor/Row/Col for grid
// rooms, or TrayID (RoomID optional) for rack rooms. Floor zero means 1.
type Target struct {
	RoomID string `json:"room_id" validate:"required_without=TrayID"`
	TrayID string `json:"tray_id"`
	Floor  int    `json:"floor" validate:"gte=0"`
	Row    int    `json:"row" validate:"gte=0"`
	Col    int    `json:"col" validate:"gte=0"`
}

// resolveTarget finds the room and normalised slot for a target.
func resolveTarget(view TransactionView, t Target) (Room, domain.ZoneSpec, error) {
	var room Room
	if t.RoomID == "" {
		if t.TrayID == "" {
			return Room{}, domain.ZoneSpec{}, fmt.Errorf("%w: target requires room_id or tray_id", domain.ErrInvalidCoordinate)
		}
		var matches []Room
		for _, candidate := range view.ListRooms() {
			if candidate.Layout.Kind != domain.LayoutRackTray {
				continue
			}
			if _, _, ok := candidate.Layout.FindTray(t.TrayID); ok {
				matches = append(matches, candidate)
			}
		}
		switch len(matches) {
		case 0:
			return Room{}, domain.ZoneSpec{}, fmt.Errorf("%w: tray %s not found", domain.ErrInvalidCoordinate, t.TrayID)
		case 1:
			room = matches[0]
		default:
			return Room{}, domain.ZoneSpec{}, fmt.Errorf("%w: tray %s exists in %d rooms, room_id required", domain.ErrInvalidCoordinate, t.TrayID, len(matches))
		}
	} else {
		found, ok := view.FindRoom(t.RoomID)
		if !ok {
			return Room{}, domain.ZoneSpec{}, fmt.Errorf("%w: %w", domain.ErrInvalidCoordinate, domain.NotFoundError{Entity: EntityRoom, ID: t.RoomID})
		}
		room = found
	}
	floor := t.Floor
	if floor == 0 {
		floor = 1
	}
	spec, err := room.Layout.Resolve(Coordinate{RoomID: room.ID, Floor: floor, Row: t.Row, Col: t.Col, TrayID: t.TrayID})
	if err != nil {
		return Room{}, domain.ZoneSpec{}, err
	}
	return room, spec, nil
}

// checkCapacity fails with ErrSlotFull when the slot cannot take another
// plant. The moving plant, if any, is not counted against the slot.
func checkCapacity(view TransactionView, spec domain.ZoneSpec, movingID string) error {
	count := 0
	for _, p := range view.PlantsAt(spec.Coordinate.Key()) {
		if p.ID != movingID {
			count++
		}
	}
	if count >= spec.Capacity {
		return fmt.Errorf("%w: %s holds %d/%d plants", domain.ErrSlotFull, spec.Coordinate, count, spec.Capacity)
	}
	return nil
}
