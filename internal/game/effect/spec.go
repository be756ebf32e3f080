package effect

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
)

// AggregatorSource exposes the aggregators of an ability system.
type AggregatorSource interface {
	Aggregator(attr attribute.Attribute) (*attribute.Aggregator, error)
}

// Spec is one application attempt of a definition: context, level, captured
// attributes, caller magnitudes and the evaluated modifier magnitudes.
type Spec struct {
	def         *Definition
	ctx         Context
	level       float64
	captured    map[CaptureDef]attribute.Captured
	setByCaller map[string]float64
	magnitudes  []float64
	frozen      bool
	key         prediction.Key
}

// NewSpec creates a spec for def. Level below 1 is raised to 1.
func NewSpec(def *Definition, ctx Context, level float64) (*Spec, error) {
	if def == nil {
		return nil, ErrNilDefinition
	}
	if level < 1 {
		level = 1
	}
	return &Spec{
		def:         def,
		ctx:         ctx,
		level:       level,
		captured:    make(map[CaptureDef]attribute.Captured),
		setByCaller: make(map[string]float64),
		magnitudes:  make([]float64, len(def.Modifiers)),
	}, nil
}

// Definition returns the template.
func (s *Spec) Definition() *Definition { return s.def }

// Context returns the application context.
func (s *Spec) Context() Context { return s.ctx }

// Level returns the spec level.
func (s *Spec) Level() float64 { return s.level }

// PredictionKey returns the key the spec was predicted under, if any.
func (s *Spec) PredictionKey() prediction.Key { return s.key }

// SetPredictionKey tags the spec as predicted under k.
func (s *Spec) SetPredictionKey(k prediction.Key) { s.key = k }

// Duration returns the active duration; zero for instant, InfiniteDuration for infinite.
func (s *Spec) Duration() time.Duration {
	switch s.def.DurationPolicy {
	case HasDuration:
		return s.def.Duration
	case Infinite:
		return InfiniteDuration
	default:
		return 0
	}
}

// Period returns the periodic interval, zero when not periodic.
func (s *Spec) Period() time.Duration {
	if !s.def.IsPeriodic() {
		return 0
	}
	return s.def.Period
}

// SetSetByCallerMagnitude stores a named caller-provided magnitude.
func (s *Spec) SetSetByCallerMagnitude(name string, v float64) {
	s.setByCaller[name] = v
}

// SetByCallerMagnitude returns a named caller-provided magnitude.
func (s *Spec) SetByCallerMagnitude(name string) (float64, bool) {
	v, ok := s.setByCaller[name]
	return v, ok
}

// SetByCallerMagnitudes returns a copy of all caller magnitudes.
func (s *Spec) SetByCallerMagnitudes() map[string]float64 {
	return maps.Clone(s.setByCaller)
}

// CaptureAttribute captures def from src with def's copy policy.
func (s *Spec) CaptureAttribute(src AggregatorSource, def CaptureDef) error {
	agg, err := src.Aggregator(def.Attribute)
	if err != nil {
		return fmt.Errorf("capturing %q for %q: %w", def.Attribute, s.def.Name, err)
	}
	s.captured[def] = attribute.Capture(agg, def.Policy, def.From)
	return nil
}

// CaptureFrom captures every capture definition of the given direction from src.
func (s *Spec) CaptureFrom(src AggregatorSource, dir attribute.Direction) error {
	for _, cd := range s.def.CaptureDefs() {
		if cd.From != dir {
			continue
		}
		if err := s.CaptureAttribute(src, cd); err != nil {
			return err
		}
	}
	return nil
}

// CapturedAttribute returns a capture by definition.
func (s *Spec) CapturedAttribute(def CaptureDef) (attribute.Captured, bool) {
	c, ok := s.captured[def]
	return c, ok
}

// LinkedCaptures returns the captures that follow their aggregator.
func (s *Spec) LinkedCaptures() []attribute.Captured {
	var out []attribute.Captured
	for _, cd := range s.def.CaptureDefs() {
		if c, ok := s.captured[cd]; ok && c.IsLinked() {
			out = append(out, c)
		}
	}
	return out
}

// CalculateModifierMagnitudes re-evaluates every modifier magnitude.
// Frozen specs (restored from replication or storage) keep their values.
func (s *Spec) CalculateModifierMagnitudes() {
	if s.frozen {
		return
	}
	for i, m := range s.def.Modifiers {
		if m.Magnitude == nil {
			s.magnitudes[i] = 0
			continue
		}
		s.magnitudes[i] = m.Magnitude.Evaluate(s)
	}
}

// FreezeMagnitudes pins modifier magnitudes to values computed elsewhere.
// Extra values are ignored, missing ones read as 0.
func (s *Spec) FreezeMagnitudes(values []float64) {
	for i := range s.magnitudes {
		if i < len(values) {
			s.magnitudes[i] = values[i]
		} else {
			s.magnitudes[i] = 0
		}
	}
	s.frozen = true
}

// ModifierMagnitude returns the last evaluated magnitude of modifier i.
func (s *Spec) ModifierMagnitude(i int) float64 {
	if i < 0 || i >= len(s.magnitudes) {
		return 0
	}
	return s.magnitudes[i]
}

// ModifierMagnitudes returns a copy of the evaluated magnitudes.
func (s *Spec) ModifierMagnitudes() []float64 {
	return slices.Clone(s.magnitudes)
}

// StackingMagnitude is the value Highest/Lowest stacking compares: the first
// modifier's magnitude.
func (s *Spec) StackingMagnitude() float64 {
	return s.ModifierMagnitude(0)
}

// Digest fingerprints the outcome of applying this spec.
func (s *Spec) Digest() prediction.Digest {
	d := prediction.NewDigester().
		String(s.def.Name).
		Float(s.level).
		Int(int64(len(s.magnitudes)))
	for _, m := range s.magnitudes {
		d.Float(m)
	}
	return d.Sum()
}
