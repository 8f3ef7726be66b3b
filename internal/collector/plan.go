package collector

import (
	"fmt"

	"match-collector/internal/riot"
)

// Unit is one tier/division slice of a run
type Unit struct {
	Spec    TierSpec
	Players int
}

// Plan is the ordered list of units of a run
type Plan struct {
	Units []Unit
}

// Validate checks every unit before any network call is made
func (p Plan) Validate() error {
	if len(p.Units) == 0 {
		return fmt.Errorf("empty plan: %w", riot.ErrConfiguration)
	}
	for _, u := range p.Units {
		if err := u.Spec.Validate(); err != nil {
			return err
		}
		if u.Players <= 0 {
			return fmt.Errorf("unit %s: player count must be positive: %w", u.Spec.Label(), riot.ErrConfiguration)
		}
	}
	return nil
}

// BuildPlan plans a single tier. A paged tier without a division is either
// split across I..IV (split) or rejected.
func BuildPlan(tier, division string, players int, split bool) (Plan, error) {
	spec, err := NewTierSpec(tier, division)
	if err != nil {
		return Plan{}, err
	}

	var plan Plan
	if !spec.IsApex() && spec.Division == "" && split {
		plan.Units = divisionUnits(spec.Tier, players, true)
	} else {
		plan.Units = []Unit{{Spec: spec, Players: players}}
	}
	return plan, plan.Validate()
}

// FullMatrixPlan plans every tier from CHALLENGER down to IRON.
// Paged tiers get one unit per division, each with players identities,
// or players split across the four divisions when split is set.
func FullMatrixPlan(players int, split bool) Plan {
	var plan Plan
	for _, t := range riot.ApexTiers {
		plan.Units = append(plan.Units, Unit{Spec: TierSpec{Tier: t}, Players: players})
	}
	for _, t := range riot.PagedTiers {
		plan.Units = append(plan.Units, divisionUnits(t, players, split)...)
	}
	return plan
}

func divisionUnits(tier string, players int, split bool) []Unit {
	shares := make([]int, len(riot.Divisions))
	for i := range shares {
		shares[i] = players
	}
	if split {
		shares = splitShares(players, len(riot.Divisions))
	}

	units := make([]Unit, 0, len(shares))
	for i, div := range riot.Divisions {
		if shares[i] == 0 {
			continue
		}
		units = append(units, Unit{Spec: TierSpec{Tier: tier, Division: div}, Players: shares[i]})
	}
	return units
}

// splitShares divides total into n parts, remainder to the first parts
func splitShares(total, n int) []int {
	shares := make([]int, n)
	if n == 0 || total <= 0 {
		return shares
	}
	base, rem := total/n, total%n
	for i := range shares {
		shares[i] = base
		if i < rem {
			shares[i]++
		}
	}
	return shares
}
