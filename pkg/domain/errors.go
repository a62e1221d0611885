package domain

import (
	"errors"
	"fmt"
)

// Command failures. Callers classify with errors.Is; messages carry the
// offending ids and counts.
var (
	ErrInvalidCoordinate      = errors.New("invalid coordinate")
	ErrSlotFull               = errors.New("slot full")
	ErrPlantNotActive         = errors.New("plant not active")
	ErrTagUnavailable         = errors.New("tag unavailable")
	ErrTagDuplicate           = errors.New("tag duplicate")
	ErrBatchNotFound          = errors.New("plant batch not found")
	ErrStrainInactive         = errors.New("strain inactive")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidPhaseTransition = errors.New("invalid phase transition")
	ErrNotFound               = errors.New("not found")
)

// NotFoundError is returned when reference validation fails within transactional helpers.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFound for every entity and ErrBatchNotFound for batches.
func (e NotFoundError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return true
	case ErrBatchNotFound:
		return e.Entity == EntityPlantBatch
	}
	return false
}
