package domain

import "fmt"

var phaseOrder = []GrowthPhase{PhaseImmature, PhaseVegetative, PhaseFlowering}

// Valid reports whether p is a known growth phase.
func (p GrowthPhase) Valid() bool {
	return p.rank() >= 0
}

func (p GrowthPhase) rank() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p. Flowering has no successor.
func (p GrowthPhase) Next() (GrowthPhase, bool) {
	r := p.rank()
	if r < 0 || r == len(phaseOrder)-1 {
		return "", false
	}
	return phaseOrder[r+1], true
}

// Before reports whether p precedes other in the natural order.
func (p GrowthPhase) Before(other GrowthPhase) bool {
	return p.rank() >= 0 && p.rank() < other.rank()
}

// ParseGrowthPhase converts raw input into a phase, defaulting empty input to immature.
func ParseGrowthPhase(raw string) (GrowthPhase, error) {
	if raw == "" {
		return PhaseImmature, nil
	}
	p := GrowthPhase(raw)
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown growth phase %q", ErrInvalidInput, raw)
	}
	return p, nil
}

// Terminal reports whether the status is one-way (harvested or destroyed).
func (s PlantStatus) Terminal() bool {
	return s == PlantStatusHarvested || s == PlantStatusDestroyed
}

// Valid reports whether b is a known batch type.
func (b BatchType) Valid() bool {
	switch b {
	case BatchTypeSeed, BatchTypeClone, BatchTypeMother:
		return true
	}
	return false
}

var harvestOrder = []HarvestStatus{
	HarvestStatusActive,
	HarvestStatusDrying,
	HarvestStatusDried,
	HarvestStatusPackaged,
	HarvestStatusClosed,
}

func (h HarvestStatus) rank() int {
	for i, candidate := range harvestOrder {
		if candidate == h {
			return i
		}
	}
	return -1
}

// Valid reports whether h is a known harvest status.
func (h HarvestStatus) Valid() bool {
	return h.rank() >= 0
}

// CanAdvanceTo reports whether a harvest may move from h to next. Statuses
// only move forward and closed is terminal.
func (h HarvestStatus) CanAdvanceTo(next HarvestStatus) bool {
	return h.rank() >= 0 && next.rank() > h.rank()
}
