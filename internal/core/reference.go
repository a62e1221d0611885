package core

import (
	"context"
	"strings"

	"growcore/pkg/domain"
)

// CreateFacilityInput creates the root of spatial addressing.
type CreateFacilityInput struct {
	Name          string `json:"name" validate:"required,max=128"`
	LicenseNumber string `json:"license_number" validate:"max=64"`
	Actor         string `json:"-"`
}

// CreateRoomInput creates a room with a fixed layout.
type CreateRoomInput struct {
	FacilityID string     `json:"facility_id" validate:"required"`
	Name       string     `json:"name" validate:"required,max=128"`
	Layout     RoomLayout `json:"layout"`
	Actor      string     `json:"-"`
}

// CreateStrainInput creates strain reference data. Strains start active.
type CreateStrainInput struct {
	Name     string `json:"name" validate:"required,max=128"`
	Category string `json:"category" validate:"max=64"`
	Actor    string `json:"-"`
}

// SetStrainActiveInput toggles whether a strain accepts new plants.
type SetStrainActiveInput struct {
	StrainID string `json:"-" validate:"required"`
	Active   bool   `json:"active"`
	Actor    string `json:"-"`
}

// CreateFacility persists a facility.
func (s *Service) CreateFacility(ctx context.Context, in CreateFacilityInput) (Facility, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return Facility{}, err
	}
	var out Facility
	_, err := s.command(ctx, "create_facility", func(tx Transaction, res *CommandResult) error {
		created, err := tx.CreateFacility(Facility{Name: in.Name, LicenseNumber: strings.TrimSpace(in.LicenseNumber)})
		if err != nil {
			return err
		}
		out = created
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityFacility,
			TrackableID:   created.ID,
			EventType:     domain.EventCreated,
		})
	})
	return out, err
}

// CreateRoom persists a room after validating its layout.
func (s *Service) CreateRoom(ctx context.Context, in CreateRoomInput) (Room, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return Room{}, err
	}
	if err := in.Layout.Validate(); err != nil {
		return Room{}, err
	}
	var out Room
	_, err := s.command(ctx, "create_room", func(tx Transaction, res *CommandResult) error {
		created, err := tx.CreateRoom(Room{FacilityID: in.FacilityID, Name: in.Name, Layout: in.Layout})
		if err != nil {
			return err
		}
		out = created
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityRoom,
			TrackableID:   created.ID,
			EventType:     domain.EventCreated,
		})
	})
	return out, err
}

// CreateStrain persists an active strain.
func (s *Service) CreateStrain(ctx context.Context, in CreateStrainInput) (Strain, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return Strain{}, err
	}
	var out Strain
	_, err := s.command(ctx, "create_strain", func(tx Transaction, res *CommandResult) error {
		created, err := tx.CreateStrain(Strain{Name: in.Name, Category: in.Category, Active: true})
		if err != nil {
			return err
		}
		out = created
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityStrain,
			TrackableID:   created.ID,
			EventType:     domain.EventCreated,
		})
	})
	return out, err
}

// SetStrainActive activates or deactivates a strain. Existing plants are unaffected.
func (s *Service) SetStrainActive(ctx context.Context, in SetStrainActiveInput) (Strain, error) {
	if err := s.check(in); err != nil {
		return Strain{}, err
	}
	var out Strain
	_, err := s.command(ctx, "set_strain_active", func(tx Transaction, res *CommandResult) error {
		current, ok := tx.Snapshot().FindStrain(in.StrainID)
		if !ok {
			return domain.NotFoundError{Entity: EntityStrain, ID: in.StrainID}
		}
		out = current
		if current.Active == in.Active {
			return nil
		}
		updated, err := tx.UpdateStrain(current.ID, func(st *Strain) error {
			st.Active = in.Active
			return nil
		})
		if err != nil {
			return err
		}
		out = updated
		return appendEvent(tx, res, in.Actor, PlantEvent{
			TrackableType: EntityStrain,
			TrackableID:   updated.ID,
			EventType:     domain.EventStatusChanged,
			Metadata:      EventMetadata{FromStatus: strainStatus(current.Active), ToStatus: strainStatus(updated.Active)},
		})
	})
	return out, err
}

func strainStatus(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// ListFacilities returns every facility.
func (s *Service) ListFacilities(ctx context.Context) ([]Facility, error) {
	var out []Facility
	err := s.view(ctx, "list_facilities", func(view TransactionView) error {
		out = view.ListFacilities()
		return nil
	})
	return out, err
}

// ListRooms returns every room, optionally limited to one facility.
func (s *Service) ListRooms(ctx context.Context, facilityID string) ([]Room, error) {
	out := []Room{}
	err := s.view(ctx, "list_rooms", func(view TransactionView) error {
		for _, room := range view.ListRooms() {
			if facilityID == "" || room.FacilityID == facilityID {
				out = append(out, room)
			}
		}
		return nil
	})
	return out, err
}

// GetRoom returns a room by id.
func (s *Service) GetRoom(ctx context.Context, id string) (Room, error) {
	var out Room
	err := s.view(ctx, "get_room", func(view TransactionView) error {
		room, ok := view.FindRoom(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityRoom, ID: id}
		}
		out = room
		return nil
	})
	return out, err
}

// ListStrains returns every strain.
func (s *Service) ListStrains(ctx context.Context) ([]Strain, error) {
	var out []Strain
	err := s.view(ctx, "list_strains", func(view TransactionView) error {
		out = view.ListStrains()
		return nil
	})
	return out, err
}

// GetStrain returns a strain by id.
func (s *Service) GetStrain(ctx context.Context, id string) (Strain, error) {
	var out Strain
	err := s.view(ctx, "get_strain", func(view TransactionView) error {
		st, ok := view.FindStrain(id)
		if !ok {
			return domain.NotFoundError{Entity: EntityStrain, ID: id}
		}
		out = st
		return nil
	})
	return out, err
}
