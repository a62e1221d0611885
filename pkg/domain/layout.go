package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// LayoutKind selects the addressing scheme of a room.
type LayoutKind string

// Supported layout kinds.
const (
	LayoutGrid     LayoutKind = "grid"
	LayoutRackTray LayoutKind = "rack_tray"
)

// RoomLayout is a tagged union of the two addressing schemes. Grid rooms use
// Rows/Cols/ZoneCapacity; rack rooms use Racks. Floors is shared and 1-based.
type RoomLayout struct {
	Kind           LayoutKind     `json:"kind"`
	Floors         int            `json:"floors"`
	Rows           int            `json:"rows,omitempty"`
	Cols           int            `json:"cols,omitempty"`
	ZoneCapacity   int            `json:"zone_capacity,omitempty"`
	ZoneCapacities map[string]int `json:"zone_capacities,omitempty"`
	Racks          []Rack         `json:"racks,omitempty"`
}

// Rack is an addressing convenience on one floor; it owns ordered trays and
// carries no capacity of its own.
type Rack struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Floor int    `json:"floor"`
	Trays []Tray `json:"trays"`
}

// Tray is a capacity-bearing slot inside a rack.
type Tray struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
	Capacity int    `json:"capacity"`
}

// GridLayout builds a grid layout with a uniform zone capacity.
func GridLayout(floors, rows, cols, capacity int) RoomLayout {
	return RoomLayout{Kind: LayoutGrid, Floors: floors, Rows: rows, Cols: cols, ZoneCapacity: capacity}
}

// RackTrayLayout builds a rack/tray layout. Floors is derived from the racks.
func RackTrayLayout(racks ...Rack) RoomLayout {
	floors := 0
	for _, r := range racks {
		if r.Floor > floors {
			floors = r.Floor
		}
	}
	return RoomLayout{Kind: LayoutRackTray, Floors: floors, Racks: racks}
}

// Coordinate addresses one zone (grid rooms) or one tray (rack rooms).
type Coordinate struct {
	RoomID string `json:"room_id"`
	Floor  int    `json:"floor"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	RackID string `json:"rack_id,omitempty"`
	TrayID string `json:"tray_id,omitempty"`
}

// Key returns the canonical slot identity used for occupancy accounting.
func (c Coordinate) Key() string {
	if c.TrayID != "" {
		return c.RoomID + ":tray:" + c.TrayID
	}
	return fmt.Sprintf("%s:%d:%d:%d", c.RoomID, c.Floor, c.Row, c.Col)
}

// SameSlot reports whether both coordinates address the same slot.
func (c Coordinate) SameSlot(other Coordinate) bool {
	return c.Key() == other.Key()
}

func (c Coordinate) String() string {
	if c.TrayID != "" {
		return fmt.Sprintf("room %s floor %d rack %s tray %s", c.RoomID, c.Floor, c.RackID, c.TrayID)
	}
	return fmt.Sprintf("room %s floor %d row %d col %d", c.RoomID, c.Floor, c.Row, c.Col)
}

// ZoneKey is the per-room key of a grid zone used by ZoneCapacities overrides.
func ZoneKey(floor, row, col int) string {
	return strconv.Itoa(floor) + ":" + strconv.Itoa(row) + ":" + strconv.Itoa(col)
}

// Layout size limits. Zones per floor is checked by division so oversized
// rows and cols cannot overflow.
const (
	MaxFloors        = 64
	MaxGridDimension = 1024
	MaxZonesPerFloor = 16384
	MaxTraysPerRoom  = 16384
)

// ZoneSpec is a resolved, normalised slot with its capacity.
type ZoneSpec struct {
	Coordinate Coordinate
	Capacity   int
}

// Validate checks the structural soundness of a layout.
func (l RoomLayout) Validate() error {
	if l.Floors < 1 {
		return fmt.Errorf("%w: layout requires at least one floor", ErrInvalidInput)
	}
	if l.Floors > MaxFloors {
		return fmt.Errorf("%w: layout has %d floors, at most %d allowed", ErrInvalidInput, l.Floors, MaxFloors)
	}
	switch l.Kind {
	case LayoutGrid:
		if l.Rows < 1 || l.Cols < 1 {
			return fmt.Errorf("%w: grid layout requires positive rows and cols", ErrInvalidInput)
		}
		if l.Rows > MaxGridDimension || l.Cols > MaxGridDimension {
			return fmt.Errorf("%w: grid %dx%d exceeds %d per side", ErrInvalidInput, l.Rows, l.Cols, MaxGridDimension)
		}
		if l.Rows > MaxZonesPerFloor/l.Cols {
			return fmt.Errorf("%w: grid %dx%d exceeds %d zones per floor", ErrInvalidInput, l.Rows, l.Cols, MaxZonesPerFloor)
		}
		if l.ZoneCapacity < 1 {
			return fmt.Errorf("%w: grid zone capacity must be at least 1", ErrInvalidInput)
		}
		if len(l.Racks) > 0 {
			return fmt.Errorf("%w: grid layout cannot declare racks", ErrInvalidInput)
		}
		for key, capacity := range l.ZoneCapacities {
			floor, row, col, err := parseZoneKey(key)
			if err != nil {
				return err
			}
			if !l.inGridBounds(floor, row, col) {
				return fmt.Errorf("%w: capacity override %s outside grid", ErrInvalidInput, key)
			}
			if capacity < 1 {
				return fmt.Errorf("%w: capacity override %s must be at least 1", ErrInvalidInput, key)
			}
		}
	case LayoutRackTray:
		if len(l.Racks) == 0 {
			return fmt.Errorf("%w: rack layout requires at least one rack", ErrInvalidInput)
		}
		seen := make(map[string]struct{})
		trays := 0
		for _, rack := range l.Racks {
			trays += len(rack.Trays)
			if trays > MaxTraysPerRoom {
				return fmt.Errorf("%w: rack layout exceeds %d trays", ErrInvalidInput, MaxTraysPerRoom)
			}
			if rack.ID == "" {
				return fmt.Errorf("%w: rack id required", ErrInvalidInput)
			}
			if rack.Floor < 1 || rack.Floor > l.Floors {
				return fmt.Errorf("%w: rack %s floor %d outside 1..%d", ErrInvalidInput, rack.ID, rack.Floor, l.Floors)
			}
			positions := make(map[int]struct{})
			for _, tray := range rack.Trays {
				if tray.ID == "" {
					return fmt.Errorf("%w: rack %s has a tray without id", ErrInvalidInput, rack.ID)
				}
				if _, dup := seen[tray.ID]; dup {
					return fmt.Errorf("%w: tray id %s declared twice", ErrInvalidInput, tray.ID)
				}
				seen[tray.ID] = struct{}{}
				if _, dup := positions[tray.Position]; dup {
					return fmt.Errorf("%w: rack %s position %d declared twice", ErrInvalidInput, rack.ID, tray.Position)
				}
				positions[tray.Position] = struct{}{}
				if tray.Capacity < 1 {
					return fmt.Errorf("%w: tray %s capacity must be at least 1", ErrInvalidInput, tray.ID)
				}
			}
		}
	default:
		return fmt.Errorf("%w: unknown layout kind %q", ErrInvalidInput, l.Kind)
	}
	return nil
}

func (l RoomLayout) inGridBounds(floor, row, col int) bool {
	return floor >= 1 && floor <= l.Floors && row >= 0 && row < l.Rows && col >= 0 && col < l.Cols
}

// CapacityAt returns the capacity of a grid zone, honouring overrides.
func (l RoomLayout) CapacityAt(floor, row, col int) int {
	if c, ok := l.ZoneCapacities[ZoneKey(floor, row, col)]; ok {
		return c
	}
	return l.ZoneCapacity
}

// FindTray locates a tray and its rack by tray id.
func (l RoomLayout) FindTray(trayID string) (Rack, Tray, bool) {
	for _, rack := range l.Racks {
		for _, tray := range rack.Trays {
			if tray.ID == trayID {
				return rack, tray, true
			}
		}
	}
	return Rack{}, Tray{}, false
}

// Resolve normalises a coordinate against the layout and returns its slot.
// Grid rooms require Floor/Row/Col in bounds; rack rooms require a known
// TrayID, and the rack and floor are filled in from the layout.
func (l RoomLayout) Resolve(c Coordinate) (ZoneSpec, error) {
	switch l.Kind {
	case LayoutGrid:
		if c.TrayID != "" {
			return ZoneSpec{}, fmt.Errorf("%w: grid room %s has no trays", ErrInvalidCoordinate, c.RoomID)
		}
		if !l.inGridBounds(c.Floor, c.Row, c.Col) {
			return ZoneSpec{}, fmt.Errorf("%w: %s outside %d floors of %dx%d", ErrInvalidCoordinate, c, l.Floors, l.Rows, l.Cols)
		}
		norm := Coordinate{RoomID: c.RoomID, Floor: c.Floor, Row: c.Row, Col: c.Col}
		return ZoneSpec{Coordinate: norm, Capacity: l.CapacityAt(c.Floor, c.Row, c.Col)}, nil
	case LayoutRackTray:
		if c.TrayID == "" {
			return ZoneSpec{}, fmt.Errorf("%w: rack room %s requires a tray id", ErrInvalidCoordinate, c.RoomID)
		}
		rack, tray, ok := l.FindTray(c.TrayID)
		if !ok {
			return ZoneSpec{}, fmt.Errorf("%w: tray %s not in room %s", ErrInvalidCoordinate, c.TrayID, c.RoomID)
		}
		norm := Coordinate{RoomID: c.RoomID, Floor: rack.Floor, Row: tray.Position, RackID: rack.ID, TrayID: tray.ID}
		return ZoneSpec{Coordinate: norm, Capacity: tray.Capacity}, nil
	default:
		return ZoneSpec{}, fmt.Errorf("%w: room %s has unknown layout %q", ErrInvalidCoordinate, c.RoomID, l.Kind)
	}
}

// Slots enumerates every placeable slot on a floor in row-major / rack order.
func (l RoomLayout) Slots(roomID string, floor int) ([]ZoneSpec, error) {
	if floor < 1 || floor > l.Floors {
		return nil, fmt.Errorf("%w: floor %d outside 1..%d", ErrInvalidCoordinate, floor, l.Floors)
	}
	var out []ZoneSpec
	switch l.Kind {
	case LayoutGrid:
		out = make([]ZoneSpec, 0, l.Rows*l.Cols)
		for row := 0; row < l.Rows; row++ {
			for col := 0; col < l.Cols; col++ {
				out = append(out, ZoneSpec{
					Coordinate: Coordinate{RoomID: roomID, Floor: floor, Row: row, Col: col},
					Capacity:   l.CapacityAt(floor, row, col),
				})
			}
		}
	case LayoutRackTray:
		for _, rack := range l.Racks {
			if rack.Floor != floor {
				continue
			}
			for _, tray := range rack.Trays {
				out = append(out, ZoneSpec{
					Coordinate: Coordinate{RoomID: roomID, Floor: floor, Row: tray.Position, RackID: rack.ID, TrayID: tray.ID},
					Capacity:   tray.Capacity,
				})
			}
		}
	}
	return out, nil
}

func parseZoneKey(key string) (floor, row, col int, err error) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: zone key %q must be floor:row:col", ErrInvalidInput, key)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, convErr := strconv.Atoi(p)
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("%w: zone key %q: %v", ErrInvalidInput, key, convErr)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}
