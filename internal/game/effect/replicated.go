package effect

import (
	"time"

	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
)

// Replicated is the state of one active effect sent across the authority
// boundary. Magnitudes are authoritative and are frozen into the receiving spec.
type Replicated struct {
	ID               uint64
	Definition       string
	Level            float64
	Instigator       actor.ID
	InstigatorAvatar actor.ID
	Causer           actor.ID
	Elapsed          time.Duration
	SetByCaller      map[string]float64
	Magnitudes       []float64
	PredictionKey    prediction.Key
}

// Replicate describes every non stand-in active effect in application order.
func (c *Container) Replicate() []Replicated {
	now := c.timers.Now()
	out := make([]Replicated, 0, len(c.active))
	for _, ae := range c.active {
		if ae.standIn {
			continue
		}
		ctx := ae.spec.Context()
		out = append(out, Replicated{
			ID:               ae.handle.ID(),
			Definition:       ae.spec.Definition().Name,
			Level:            ae.spec.Level(),
			Instigator:       ctx.Instigator,
			InstigatorAvatar: ctx.InstigatorAvatar,
			Causer:           ctx.Causer,
			Elapsed:          now - ae.start,
			SetByCaller:      ae.spec.SetByCallerMagnitudes(),
			Magnitudes:       ae.spec.ModifierMagnitudes(),
			PredictionKey:    ae.spec.PredictionKey(),
		})
	}
	return out
}

// SpecFromReplicated rebuilds a spec for r against def, magnitudes frozen.
func SpecFromReplicated(def *Definition, r Replicated) (*Spec, error) {
	ctx := Context{
		Instigator:       r.Instigator,
		InstigatorAvatar: r.InstigatorAvatar,
		Causer:           r.Causer,
	}
	s, err := NewSpec(def, ctx, r.Level)
	if err != nil {
		return nil, err
	}
	for name, v := range r.SetByCaller {
		s.SetSetByCallerMagnitude(name, v)
	}
	s.FreezeMagnitudes(r.Magnitudes)
	s.SetPredictionKey(r.PredictionKey)
	return s, nil
}
