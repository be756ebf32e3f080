package effect

import (
	"fmt"

	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

// Target is the ability system an effect is applied to.
type Target interface {
	AggregatorSource
	Tags() *tag.CountContainer
}

// ExecuteSpec applies the spec's modifiers once, permanently, to the target's
// base values. Only instant and periodic specs may be executed; anything else
// is a programming error and panics.
//
// Magnitudes are re-evaluated first unless frozen. All aggregators are
// resolved before the first write so a missing attribute leaves the target
// untouched.
func ExecuteSpec(target AggregatorSource, s *Spec) error {
	def := s.Definition()
	if def.DurationPolicy != Instant && !def.IsPeriodic() {
		panic(fmt.Sprintf("effect: ExecuteSpec on durational non-periodic effect %q", def.Name))
	}

	s.CalculateModifierMagnitudes()
	aggs := make([]*attribute.Aggregator, len(def.Modifiers))
	for i, m := range def.Modifiers {
		agg, err := target.Aggregator(m.Attribute)
		if err != nil {
			return fmt.Errorf("executing %q: %w", def.Name, err)
		}
		aggs[i] = agg
	}
	for i, m := range def.Modifiers {
		aggs[i].ExecuteOnBase(m.Op, s.ModifierMagnitude(i), m.Callback)
	}
	return nil
}
