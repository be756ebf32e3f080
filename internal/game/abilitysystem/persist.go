package abilitysystem

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/cue"
	"github.com/udisondev/gameplayfx/internal/game/effect"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
)

// State is the persistent part of a component: base values and the active
// effects with their elapsed time.
type State struct {
	Bases   map[attribute.Attribute]float64
	Effects []effect.Replicated
}

// Snapshot captures the component for storage.
func (c *Component) Snapshot() State {
	return State{
		Bases:   c.BaseValues(),
		Effects: c.effects.Replicate(),
	}
}

// Restore loads st into a freshly created component. Effects are re-added as
// local effects with their remaining time; ones that no longer resolve or
// already expired are skipped. Returns the number of effects restored.
func (c *Component) Restore(st State) (int, error) {
	if c.effects.Len() > 0 {
		return 0, fmt.Errorf("restore %s: component already has %d active effects", c.owner, c.effects.Len())
	}
	c.SetBaseValues(st.Bases)

	restored := 0
	for _, r := range st.Effects {
		def, err := c.definition(r.Definition)
		if err != nil {
			slog.Warn("stored effect skipped", "owner", c.owner, "effect", r.Definition, "err", err)
			continue
		}
		r.PredictionKey = prediction.Key{}
		s, err := effect.SpecFromReplicated(def, r)
		if err != nil {
			return restored, err
		}
		_, err = c.effects.CreateNewActiveEffectWith(s, effect.AddOptions{
			Origin:   cue.OriginLocal,
			LateJoin: true,
			Elapsed:  r.Elapsed,
		})
		switch {
		case errors.Is(err, effect.ErrAlreadyExpired):
			continue
		case err != nil:
			slog.Warn("stored effect not restored", "owner", c.owner, "effect", r.Definition, "err", err)
			continue
		}
		restored++
	}
	return restored, nil
}
