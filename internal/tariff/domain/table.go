package tariff

import (
	"fmt"
	"sort"
)

// DefaultPlanID is used whenever a lookup misses.
const DefaultPlanID = "domestique-pp"

// Table maps plan ids to plans.
type Table map[string]Plan

// DefaultTable returns the built-in prepaid plans.
func DefaultTable() Table {
	return Table{
		"domestique-pp":    {ID: "domestique-pp", Name: "Domestique petite puissance", Tier1Price: 91.17, Tier2Price: 136.49},
		"domestique-mp":    {ID: "domestique-mp", Name: "Domestique moyenne puissance", Tier1Price: 101.23, Tier2Price: 112.65},
		"professionnel-pp": {ID: "professionnel-pp", Name: "Professionnel petite puissance", Tier1Price: 147.43, Tier2Price: 189.84},
		"professionnel-mp": {ID: "professionnel-mp", Name: "Professionnel moyenne puissance", Tier1Price: 165.01, Tier2Price: 191.01},
	}
}

// Has reports whether the plan id is known.
func (t Table) Has(planID string) bool {
	_, ok := t[planID]
	return ok
}

// Find returns the plan for id without falling back.
func (t Table) Find(planID string) (Plan, error) {
	p, ok := t[planID]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}
	return p, nil
}

// Lookup returns the plan for id, falling back to the default plan.
func (t Table) Lookup(planID string) Plan {
	if p, ok := t[planID]; ok {
		return p
	}
	if p, ok := t[DefaultPlanID]; ok {
		return p
	}
	return DefaultTable()[DefaultPlanID]
}

// Merge adds plans from other into a copy of t. Existing ids are overwritten.
func (t Table) Merge(other Table) Table {
	merged := make(Table, len(t)+len(other))
	for id, p := range t {
		merged[id] = p
	}
	for id, p := range other {
		merged[id] = p
	}
	return merged
}

// Plans returns the plans sorted by id.
func (t Table) Plans() []Plan {
	plans := make([]Plan, 0, len(t))
	for _, p := range t {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].ID < plans[j].ID })
	return plans
}
