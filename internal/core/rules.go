package core

import "growcore/pkg/domain"

// NewRulesEngine constructs an empty engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set.
// Every rule only inspects the entities the transaction touched.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewZoneCapacityRule())
	engine.Register(NewTagBindingRule())
	engine.Register(NewBatchCountRule())
	engine.Register(LifecycleTransitionRule())
	return engine
}

// changedPlants returns the before/after pairs of plant changes. Before is
// nil for creations.
func changedPlants(changes []Change) (before []*Plant, after []Plant) {
	for _, change := range changes {
		if change.Entity != EntityPlant {
			continue
		}
		p, ok := change.After.(Plant)
		if !ok {
			continue
		}
		var prev *Plant
		if b, ok := change.Before.(Plant); ok {
			prev = &b
		}
		before = append(before, prev)
		after = append(after, p)
	}
	return before, after
}
