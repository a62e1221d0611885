package core

import (
	"errors"

	"growcore/pkg/domain"
)

// Error codes reported for rejected commands.
const (
	CodeInvalidCoordinate = "INVALID_COORDINATE"
	CodeSlotFull          = "SLOT_FULL"
	CodePlantNotActive    = "PLANT_NOT_ACTIVE"
	CodeTagUnavailable    = "TAG_UNAVAILABLE"
	CodeTagDuplicate      = "TAG_DUPLICATE"
	CodeBatchNotFound     = "BATCH_NOT_FOUND"
	CodeStrainInactive    = "STRAIN_INACTIVE"
	CodeInvalidPhase      = "INVALID_PHASE_TRANSITION"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeRuleViolation     = "RULE_VIOLATION"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrInvalidCoordinate, CodeInvalidCoordinate},
	{domain.ErrSlotFull, CodeSlotFull},
	{domain.ErrPlantNotActive, CodePlantNotActive},
	{domain.ErrTagUnavailable, CodeTagUnavailable},
	{domain.ErrTagDuplicate, CodeTagDuplicate},
	{domain.ErrBatchNotFound, CodeBatchNotFound},
	{domain.ErrStrainInactive, CodeStrainInactive},
	{domain.ErrInvalidPhaseTransition, CodeInvalidPhase},
	{domain.ErrNotFound, CodeNotFound},
	{domain.ErrInvalidInput, CodeInvalidInput},
}

// ErrorCode classifies a command error. It returns an empty string for
// infrastructure failures that are not the caller's fault.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, candidate := range errorCodes {
		if errors.Is(err, candidate.err) {
			return candidate.code
		}
	}
	var violation RuleViolationError
	if errors.As(err, &violation) {
		return CodeRuleViolation
	}
	return ""
}
