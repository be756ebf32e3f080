package effect

import (
	"log/slog"

	"github.com/udisondev/gameplayfx/internal/game/actor"
)

// stackKey groups the active instances a stacking policy compares.
type stackKey struct {
	definition string
	source     actor.ID
}

func keyOf(s *Spec) stackKey {
	def := s.Definition()
	k := stackKey{definition: def.Name}
	if def.StackingType == StackBySource {
		k.source = s.Context().Instigator
	}
	return k
}

func stacks(ae *ActiveEffect) bool {
	return !ae.standIn && ae.spec.Definition().Stacking != StackUnlimited
}

// beats reports whether a, applied after b, wins over b under policy.
// Equal magnitudes go to the most recent application.
func beats(policy StackingPolicy, a, b float64) bool {
	switch policy {
	case StackHighest:
		return a >= b
	case StackLowest:
		return a <= b
	default:
		return true
	}
}

// wouldWinStacking reports whether s survives against the current occupant of
// its stacking group. Effects for which skip returns true are left out.
func (c *Container) wouldWinStacking(s *Spec, skip func(*ActiveEffect) bool) bool {
	def := s.Definition()
	if def.Stacking == StackUnlimited || def.Stacking == StackReplaces {
		return true
	}
	key := keyOf(s)
	mag := s.StackingMagnitude()
	for _, ae := range c.active {
		if !stacks(ae) || keyOf(ae.spec) != key || skip(ae) {
			continue
		}
		if !beats(def.Stacking, mag, ae.spec.StackingMagnitude()) {
			return false
		}
	}
	return true
}

// RecalculateStacking leaves at most one winner per (definition, source group)
// for every non-Unlimited policy. Losers are removed in application order with
// their Removed cue. Returns the number of evicted effects.
func (c *Container) RecalculateStacking() int {
	winners := make(map[stackKey]*ActiveEffect)
	for _, ae := range c.active {
		if !stacks(ae) {
			continue
		}
		key := keyOf(ae.spec)
		cur, ok := winners[key]
		// c.active is in application order, so ae is always the newer one.
		if !ok || beats(ae.spec.Definition().Stacking, ae.spec.StackingMagnitude(), cur.spec.StackingMagnitude()) {
			winners[key] = ae
		}
	}

	var losers []*ActiveEffect
	for _, ae := range c.active {
		if !stacks(ae) {
			continue
		}
		if winners[keyOf(ae.spec)] != ae {
			losers = append(losers, ae)
		}
	}
	for _, ae := range losers {
		slog.Debug("stacking evicted active effect",
			"owner", c.owner,
			"effect", ae.spec.Definition().Name,
			"handle", ae.handle,
			"magnitude", ae.spec.StackingMagnitude())
		c.remove(ae, false)
	}
	return len(losers)
}
