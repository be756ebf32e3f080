package effect

import (
	"log/slog"

	"github.com/udisondev/gameplayfx/internal/game/attribute"
)

// Magnitude computes a modifier's value for a spec. The set of kinds is closed.
type Magnitude interface {
	Evaluate(s *Spec) float64
	magnitude()
}

// ScalableFloat is a constant scaled by an optional per-level table.
// Level 1 reads PerLevel[0]; levels beyond the table use its last entry.
type ScalableFloat struct {
	Value    float64
	PerLevel []float64
}

// Flat returns a ScalableFloat without level scaling.
func Flat(v float64) ScalableFloat {
	return ScalableFloat{Value: v}
}

func (ScalableFloat) magnitude() {}

// Evaluate implements Magnitude.
func (m ScalableFloat) Evaluate(s *Spec) float64 {
	return m.AtLevel(s.Level())
}

// AtLevel returns the value at level.
func (m ScalableFloat) AtLevel(level float64) float64 {
	if len(m.PerLevel) == 0 {
		return m.Value
	}
	i := int(level) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(m.PerLevel) {
		i = len(m.PerLevel) - 1
	}
	return m.Value * m.PerLevel[i]
}

// CaptureDef names an attribute captured into a spec.
type CaptureDef struct {
	Attribute attribute.Attribute
	From      attribute.Direction // Outgoing = source, Incoming = target
	Policy    attribute.CopyPolicy
}

// AttributeBased derives the magnitude from a captured attribute:
// (captured + PreMultiplyAdditive) × Coefficient + PostMultiplyAdditive.
type AttributeBased struct {
	Capture              CaptureDef
	Coefficient          float64
	PreMultiplyAdditive  float64
	PostMultiplyAdditive float64
}

func (AttributeBased) magnitude() {}

// Evaluate implements Magnitude. A missing capture evaluates as 0.
func (m AttributeBased) Evaluate(s *Spec) float64 {
	c, ok := s.CapturedAttribute(m.Capture)
	if !ok {
		slog.Warn("attribute-based magnitude without capture",
			"effect", s.Definition().Name,
			"attribute", m.Capture.Attribute)
		return m.PostMultiplyAdditive
	}
	return (c.Value()+m.PreMultiplyAdditive)*m.Coefficient + m.PostMultiplyAdditive
}

// SetByCaller reads a magnitude the caller stored on the spec by name.
type SetByCaller struct {
	Name string
}

func (SetByCaller) magnitude() {}

// Evaluate implements Magnitude. A missing value evaluates as 0.
func (m SetByCaller) Evaluate(s *Spec) float64 {
	v, ok := s.SetByCallerMagnitude(m.Name)
	if !ok {
		slog.Warn("set-by-caller magnitude missing",
			"effect", s.Definition().Name,
			"name", m.Name)
	}
	return v
}

// Custom computes the magnitude with caller-supplied code.
type Custom struct {
	Fn func(s *Spec) float64
}

func (Custom) magnitude() {}

// Evaluate implements Magnitude.
func (m Custom) Evaluate(s *Spec) float64 {
	if m.Fn == nil {
		return 0
	}
	return m.Fn(s)
}
