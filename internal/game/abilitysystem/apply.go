package abilitysystem

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/cue"
	"github.com/udisondev/gameplayfx/internal/game/effect"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

// Result describes a successful application.
type Result struct {
	Handle    effect.Handle // invalid for executed instants
	Executed  bool          // instant modifiers were applied to base values
	Predicted bool          // applied speculatively, pending catch-up
}

// ApplyGameplayEffectSpecToTarget applies s to target under key. The target's
// authority decides whether the application may happen.
func (c *Component) ApplyGameplayEffectSpecToTarget(s *effect.Spec, target *Component, key prediction.Key) (Result, error) {
	if target == nil {
		return Result{}, ErrNilTarget
	}
	return target.ApplyGameplayEffectSpecToSelf(s, key)
}

// ApplyGameplayEffectSpecToSelf runs the application pipeline:
// authority, tag requirements, attribute backing, chance, then execute or activate.
//
// Designed non-applications (ErrUnauthorized, ErrTagRequirementNotMet,
// ErrApplicationRolledOut) leave no side effects. Data errors are logged.
func (c *Component) ApplyGameplayEffectSpecToSelf(s *effect.Spec, key prediction.Key) (Result, error) {
	if s == nil || s.Definition() == nil {
		slog.Error("apply without definition", "owner", c.owner)
		return Result{}, effect.ErrNilDefinition
	}
	def := s.Definition()

	predicting := !c.authority
	if predicting {
		if !c.ledger.IsValidForMorePrediction(key) {
			slog.Debug("apply refused: no authority",
				"owner", c.owner,
				"effect", def.Name,
				"key", key)
			return Result{}, ErrUnauthorized
		}
	} else if key.IsValid() {
		c.journal.Observe(key)
	}

	if !def.ApplicationRequirements.RequirementsMet(c.tags) {
		return Result{}, fmt.Errorf("%q on %s: %w", def.Name, c.owner, ErrTagRequirementNotMet)
	}

	for _, attr := range def.Attributes() {
		if _, err := c.Aggregator(attr); err != nil {
			slog.Error("apply refused: attribute not backed",
				"owner", c.owner,
				"effect", def.Name,
				"attribute", attr,
				"err", err)
			return Result{}, err
		}
	}

	if chance := def.Chance(); chance < 1 && c.roller.Float64() >= chance {
		return Result{}, fmt.Errorf("%q on %s: %w", def.Name, c.owner, ErrApplicationRolledOut)
	}

	if err := s.CaptureFrom(c, attribute.Incoming); err != nil {
		slog.Error("apply refused: incoming capture failed",
			"owner", c.owner,
			"effect", def.Name,
			"err", err)
		return Result{}, err
	}
	if key.IsValid() {
		s.SetPredictionKey(key)
	}

	if def.DurationPolicy == effect.Instant {
		if predicting {
			return c.predictInstant(s, key)
		}
		return c.executeInstant(s, key)
	}
	if predicting {
		return c.predictActive(s, key)
	}
	return c.activate(s, key)
}

// displacing returns add options that remove the effects matched by the
// definition's RemoveEffectsWithTags once the spec is admitted, and collects
// the authority IDs of displaced replicated effects.
func (c *Component) displacing(s *effect.Spec, origin cue.Origin) (effect.AddOptions, *[]uint64) {
	def := s.Definition()
	replicated := new([]uint64)
	return effect.AddOptions{
		Origin:   origin,
		Displace: def.RemoveEffectsWithTags,
		OnDisplaced: func(ae *effect.ActiveEffect) {
			if ae.Origin() == cue.OriginReplicated {
				*replicated = append(*replicated, ae.ReplicatedID())
			}
			slog.Debug("effect removed by tags",
				"owner", c.owner,
				"effect", def.Name,
				"removed", ae.Spec().Definition().Name)
		},
	}, replicated
}

func (c *Component) executeInstant(s *effect.Spec, key prediction.Key) (Result, error) {
	if err := effect.ExecuteSpec(c, s); err != nil {
		slog.Error("instant execution failed", "owner", c.owner, "effect", s.Definition().Name, "err", err)
		return Result{}, err
	}
	if n := c.RemoveActiveEffectsWithTags(s.Definition().RemoveEffectsWithTags); n > 0 {
		slog.Debug("removed effects with tags",
			"owner", c.owner,
			"effect", s.Definition().Name,
			"removed", n)
	}
	effect.InvokeSpecCues(c.cues, s, cue.Executed, cue.OriginLocal)
	if key.IsValid() {
		c.journal.Accept(key, s.Digest())
	}
	return Result{Executed: true}, nil
}

func (c *Component) activate(s *effect.Spec, key prediction.Key) (Result, error) {
	opts, _ := c.displacing(s, cue.OriginLocal)
	h, err := c.effects.CreateNewActiveEffectWith(s, opts)
	if err != nil {
		if !errors.Is(err, effect.ErrStackingRejected) {
			slog.Error("activation failed", "owner", c.owner, "effect", s.Definition().Name, "err", err)
		}
		return Result{}, err
	}
	if key.IsValid() {
		c.journal.Accept(key, s.Digest())
	}
	return Result{Handle: h}, nil
}

// predictInstant holds a predicted instant as an infinite stand-in so it
// stays removable until the authority catches up.
func (c *Component) predictInstant(s *effect.Spec, key prediction.Key) (Result, error) {
	opts, displaced := c.displacing(s, cue.OriginPredicted)
	opts.StandIn = true
	h, err := c.effects.CreateNewActiveEffectWith(s, opts)
	if err != nil {
		slog.Error("predicted instant failed", "owner", c.owner, "effect", s.Definition().Name, "err", err)
		return Result{}, err
	}
	effect.InvokeSpecCues(c.cues, s, cue.Executed, cue.OriginPredicted)

	name := s.Definition().Name
	err = c.ledger.AddPending(key, prediction.Pending{
		Label:  name,
		Digest: s.Digest(),
		Confirm: func() {
			if err := c.effects.CommitStandIn(h); err != nil {
				slog.Warn("confirmed stand-in missing", "owner", c.owner, "effect", name, "err", err)
			}
		},
		Reject: func() {
			c.effects.RemoveActiveEffectSilently(h)
			c.restoreDisplaced(*displaced)
		},
	})
	if err != nil {
		c.effects.RemoveActiveEffectSilently(h)
		c.restoreDisplaced(*displaced)
		return Result{}, err
	}
	return Result{Handle: h, Predicted: true}, nil
}

// predictActive adds a predicted durational effect. Confirmation comes from
// the replicated effect list, which swaps it for the authoritative copy.
func (c *Component) predictActive(s *effect.Spec, key prediction.Key) (Result, error) {
	opts, displaced := c.displacing(s, cue.OriginPredicted)
	h, err := c.effects.CreateNewActiveEffectWith(s, opts)
	if err != nil {
		if !errors.Is(err, effect.ErrStackingRejected) {
			slog.Error("predicted activation failed", "owner", c.owner, "effect", s.Definition().Name, "err", err)
		}
		return Result{}, err
	}
	err = c.ledger.AddPending(key, prediction.Pending{
		Label:  s.Definition().Name,
		Digest: s.Digest(),
		Reject: func() {
			c.effects.RemoveActiveEffect(h)
			c.restoreDisplaced(*displaced)
		},
	})
	if err != nil {
		c.effects.RemoveActiveEffectSilently(h)
		c.restoreDisplaced(*displaced)
		return Result{}, err
	}
	return Result{Handle: h, Predicted: true}, nil
}

// ApplyGameplayEffectToTarget builds an outgoing spec for the named
// definition and applies it to target.
func (c *Component) ApplyGameplayEffectToTarget(name string, level float64, target *Component, key prediction.Key) (Result, error) {
	s, err := c.MakeOutgoingSpecByName(name, level)
	if err != nil {
		return Result{}, err
	}
	return c.ApplyGameplayEffectSpecToTarget(s, target, key)
}

// RemoveActiveEffect removes one active effect by handle.
func (c *Component) RemoveActiveEffect(h effect.Handle) bool {
	return c.effects.RemoveActiveEffect(h)
}

// RemoveActiveEffectsWithTags removes every effect whose asset or granted tags
// match any of tags.
func (c *Component) RemoveActiveEffectsWithTags(tags tag.Container) int {
	if tags.IsEmpty() {
		return 0
	}
	return c.effects.RemoveActiveEffects(effect.Query{OwningTagsAny: tags})
}
