package effect

import (
	"errors"
	"fmt"
	"time"

	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

var (
	ErrNilDefinition     = errors.New("nil effect definition")
	ErrInvalidDefinition = errors.New("invalid effect definition")
	ErrInstantEffect     = errors.New("instant effects never enter the active container")
	ErrStackingRejected  = errors.New("stacking rejected the new spec")
	ErrAlreadyExpired    = errors.New("effect already expired")
)

// DurationPolicy decides whether an effect executes once or stays active.
type DurationPolicy uint8

const (
	Instant DurationPolicy = iota
	HasDuration
	Infinite
)

func (p DurationPolicy) String() string {
	switch p {
	case Instant:
		return "Instant"
	case HasDuration:
		return "HasDuration"
	case Infinite:
		return "Infinite"
	default:
		return "Unknown"
	}
}

// StackingPolicy resolves several active instances of the same definition.
type StackingPolicy uint8

const (
	StackUnlimited StackingPolicy = iota // every application stays active
	StackHighest                         // keep the largest stacking magnitude
	StackLowest                          // keep the smallest stacking magnitude
	StackReplaces                        // newest always evicts the previous occupant
)

func (p StackingPolicy) String() string {
	switch p {
	case StackUnlimited:
		return "Unlimited"
	case StackHighest:
		return "Highest"
	case StackLowest:
		return "Lowest"
	case StackReplaces:
		return "Replaces"
	default:
		return "Unknown"
	}
}

// StackingType picks the source group a stacking policy works within.
type StackingType uint8

const (
	StackBySource StackingType = iota // one winner per instigator
	StackByTarget                     // one winner per target regardless of instigator
)

// ModifierInfo is one attribute modification of a definition.
type ModifierInfo struct {
	Attribute attribute.Attribute
	Op        attribute.Op
	Magnitude Magnitude
	Callback  attribute.Callback // required for attribute.OpCallback
}

// CueInfo binds cue tags to an effect. Level is normalized over [MinLevel, MaxLevel].
type CueInfo struct {
	Tags     tag.Container
	MinLevel float64
	MaxLevel float64
}

// Definition is the immutable template of an effect. Never mutate it after
// it is handed to a spec.
type Definition struct {
	Name string

	DurationPolicy DurationPolicy
	Duration       time.Duration // HasDuration only
	Period         time.Duration // >0 makes a durational effect periodic

	// ExecutePeriodicOnApplication also executes at t=0. Off by default:
	// periodic effects fire at P, 2P, … up to and including the duration.
	ExecutePeriodicOnApplication bool

	Modifiers []ModifierInfo

	Stacking     StackingPolicy
	StackingType StackingType

	ApplicationRequirements tag.Requirements
	GrantedTags             tag.Container
	AssetTags               tag.Container
	RemoveEffectsWithTags   tag.Container

	// ChanceToApply in (0,1). Zero and values ≥1 always apply.
	ChanceToApply float64

	Cues []CueInfo
}

// IsPeriodic reports whether the effect re-executes at period boundaries.
func (d *Definition) IsPeriodic() bool {
	return d.DurationPolicy != Instant && d.Period > 0
}

// Chance returns the effective chance to apply.
func (d *Definition) Chance() float64 {
	if d.ChanceToApply <= 0 || d.ChanceToApply >= 1 {
		return 1
	}
	return d.ChanceToApply
}

// Attributes returns the distinct attributes touched by the modifiers, in order.
func (d *Definition) Attributes() []attribute.Attribute {
	out := make([]attribute.Attribute, 0, len(d.Modifiers))
	seen := make(map[attribute.Attribute]struct{}, len(d.Modifiers))
	for _, m := range d.Modifiers {
		if _, ok := seen[m.Attribute]; ok {
			continue
		}
		seen[m.Attribute] = struct{}{}
		out = append(out, m.Attribute)
	}
	return out
}

// CaptureDefs returns the attribute captures the modifiers need.
func (d *Definition) CaptureDefs() []CaptureDef {
	var out []CaptureDef
	for _, m := range d.Modifiers {
		if ab, ok := m.Magnitude.(AttributeBased); ok {
			out = append(out, ab.Capture)
		}
	}
	return out
}

// Validate checks that the definition is internally consistent.
func (d *Definition) Validate() error {
	if d == nil {
		return ErrNilDefinition
	}
	if d.Name == "" {
		return fmt.Errorf("definition without name: %w", ErrInvalidDefinition)
	}
	switch d.DurationPolicy {
	case Instant:
		if d.Period > 0 {
			return fmt.Errorf("%q: instant effect with period: %w", d.Name, ErrInvalidDefinition)
		}
		if !d.GrantedTags.IsEmpty() {
			return fmt.Errorf("%q: instant effect cannot grant tags: %w", d.Name, ErrInvalidDefinition)
		}
	case HasDuration:
		if d.Duration <= 0 {
			return fmt.Errorf("%q: duration must be positive: %w", d.Name, ErrInvalidDefinition)
		}
	case Infinite:
	default:
		return fmt.Errorf("%q: unknown duration policy %d: %w", d.Name, d.DurationPolicy, ErrInvalidDefinition)
	}
	if d.Period < 0 {
		return fmt.Errorf("%q: negative period: %w", d.Name, ErrInvalidDefinition)
	}
	for i, m := range d.Modifiers {
		if m.Attribute == "" {
			return fmt.Errorf("%q: modifier %d has no attribute: %w", d.Name, i, ErrInvalidDefinition)
		}
		if m.Op == attribute.OpCallback {
			if m.Callback == nil {
				return fmt.Errorf("%q: callback modifier %d without callback: %w", d.Name, i, ErrInvalidDefinition)
			}
			continue
		}
		if m.Magnitude == nil {
			return fmt.Errorf("%q: modifier %d has no magnitude: %w", d.Name, i, ErrInvalidDefinition)
		}
	}
	return nil
}
