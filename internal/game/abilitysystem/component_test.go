package abilitysystem

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/cue"
	"github.com/udisondev/gameplayfx/internal/game/effect"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
	"github.com/udisondev/gameplayfx/internal/game/tag"
	"github.com/udisondev/gameplayfx/internal/game/timer"
)

type testDefs map[string]*effect.Definition

func (d testDefs) Definition(name string) (*effect.Definition, bool) {
	def, ok := d[name]
	return def, ok
}

type fixedRoll float64

func (r fixedRoll) Float64() float64 { return float64(r) }

var (
	heal = &effect.Definition{
		Name:           "Heal",
		DurationPolicy: effect.Instant,
		Modifiers:      []effect.ModifierInfo{{Attribute: "Health", Op: attribute.OpAdd, Magnitude: effect.Flat(10)}},
		Cues:           []effect.CueInfo{{Tags: tag.NewContainer("Cue.Heal")}},
	}
	haste = &effect.Definition{
		Name:           "Haste",
		DurationPolicy: effect.HasDuration,
		Duration:       5 * time.Second,
		Modifiers:      []effect.ModifierInfo{{Attribute: "Speed", Op: attribute.OpMultiply, Magnitude: effect.Flat(2)}},
		GrantedTags:    tag.NewContainer("State.Buff.Haste"),
		Cues:           []effect.CueInfo{{Tags: tag.NewContainer("Cue.Haste")}},
	}
	plating = &effect.Definition{
		Name:           "Plating",
		DurationPolicy: effect.Infinite,
		Modifiers:      []effect.ModifierInfo{{Attribute: "Armor", Op: attribute.OpAdd, Magnitude: effect.Flat(5)}},
	}
	poison = &effect.Definition{
		Name:           "Poison",
		DurationPolicy: effect.HasDuration,
		Duration:       10 * time.Second,
		Period:         time.Second,
		Modifiers:      []effect.ModifierInfo{{Attribute: "Health", Op: attribute.OpAdd, Magnitude: effect.Flat(-2)}},
		AssetTags:      tag.NewContainer("Effect.Debuff.Poison"),
	}
	cleanse = &effect.Definition{
		Name:                  "Cleanse",
		DurationPolicy:        effect.Instant,
		RemoveEffectsWithTags: tag.NewContainer("Effect.Debuff"),
	}
)

func allDefs() testDefs {
	return testDefs{"Heal": heal, "Haste": haste, "Plating": plating, "Poison": poison, "Cleanse": cleanse}
}

type testActor struct {
	comp   *Component
	timers *timer.Manager
	cues   *cue.Recorder
}

func newActor(t *testing.T, id actor.ID, authority bool, opts ...func(*Options)) *testActor {
	t.Helper()
	timers := timer.NewManager()
	rec := &cue.Recorder{}
	o := Options{
		Owner:     id,
		Authority: authority,
		Sets: []*attribute.Set{
			attribute.NewSetFromTable("Vitals", map[attribute.Attribute]float64{"Health": 50}),
			attribute.NewSetFromTable("Movement", map[attribute.Attribute]float64{"Speed": 100, "Armor": 0}),
		},
		Timers:      timers,
		Consumer:    rec,
		Definitions: allDefs(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &testActor{comp: New(o), timers: timers, cues: rec}
}

func (a *testActor) value(t *testing.T, attr attribute.Attribute) float64 {
	t.Helper()
	v, err := a.comp.GetNumericAttribute(attr)
	require.NoError(t, err)
	return v
}

func (a *testActor) base(t *testing.T, attr attribute.Attribute) float64 {
	t.Helper()
	v, err := a.comp.GetBaseValue(attr)
	require.NoError(t, err)
	return v
}

func (a *testActor) spec(t *testing.T, def *effect.Definition) *effect.Spec {
	t.Helper()
	s, err := a.comp.MakeOutgoingSpec(def, 1, a.comp.MakeEffectContext())
	require.NoError(t, err)
	return s
}

func TestApply_InstantAddsToBase(t *testing.T) {
	a := newActor(t, "hero", true)

	res, err := a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, heal), prediction.Key{})
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.False(t, res.Handle.IsValid())

	assert.Equal(t, 60.0, a.value(t, "Health"))
	assert.Equal(t, 0, a.comp.Effects().Len())
	assert.Equal(t, 1, a.cues.Count("Cue.Heal", cue.Executed))
}

func TestApply_DurationalExpires(t *testing.T) {
	a := newActor(t, "hero", true)

	res, err := a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, haste), prediction.Key{})
	require.NoError(t, err)
	require.True(t, res.Handle.IsValid())
	assert.Equal(t, 200.0, a.value(t, "Speed"))
	assert.True(t, a.comp.Tags().HasTag("State.Buff"))

	a.timers.Advance(5 * time.Second)
	assert.Equal(t, 100.0, a.value(t, "Speed"))
	assert.False(t, a.comp.Tags().HasTag("State.Buff"))
	assert.Equal(t, []cue.Event{cue.OnActive, cue.WhileActive, cue.Removed}, a.cues.Events("Cue.Haste"))
}

func TestApply_TwoSourcesStack(t *testing.T) {
	target := newActor(t, "hero", true)
	ally := newActor(t, "ally", true)

	r1, err := target.comp.ApplyGameplayEffectSpecToSelf(target.spec(t, plating), prediction.Key{})
	require.NoError(t, err)
	_, err = ally.comp.ApplyGameplayEffectSpecToTarget(ally.spec(t, plating), target.comp, prediction.Key{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, target.value(t, "Armor"))

	assert.True(t, target.comp.RemoveActiveEffect(r1.Handle))
	assert.Equal(t, 5.0, target.value(t, "Armor"))
	assert.False(t, target.comp.RemoveActiveEffect(r1.Handle))
}

func TestApply_TagRequirements(t *testing.T) {
	a := newActor(t, "hero", true)
	def := &effect.Definition{
		Name:           "Bless",
		DurationPolicy: effect.Infinite,
		Modifiers:      []effect.ModifierInfo{{Attribute: "Armor", Op: attribute.OpAdd, Magnitude: effect.Flat(1)}},
		ApplicationRequirements: tag.Requirements{
			Require: tag.NewContainer("State.Alive"),
			Ignore:  tag.NewContainer("State.Immune"),
		},
		GrantedTags: tag.NewContainer("State.Blessed"),
	}

	_, err := a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, def), prediction.Key{})
	assert.True(t, errors.Is(err, ErrTagRequirementNotMet))
	assert.Equal(t, 0, a.comp.Effects().Len())
	assert.Equal(t, 0, a.comp.Tags().Count("State.Blessed"))

	a.comp.AddLooseTag("State.Alive", 1)
	_, err = a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, def), prediction.Key{})
	require.NoError(t, err)

	a.comp.AddLooseTag("State.Immune.Magic", 1)
	_, err = a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, def), prediction.Key{})
	assert.True(t, errors.Is(err, ErrTagRequirementNotMet), "child tag satisfies ignore")
	assert.Equal(t, 1, a.comp.Effects().Len())
}

func TestApply_MissingAttributeSet(t *testing.T) {
	a := newActor(t, "hero", true)
	def := &effect.Definition{
		Name:           "Focus",
		DurationPolicy: effect.Infinite,
		Modifiers: []effect.ModifierInfo{
			{Attribute: "Speed", Op: attribute.OpAdd, Magnitude: effect.Flat(1)},
			{Attribute: "Mana", Op: attribute.OpAdd, Magnitude: effect.Flat(1)},
		},
	}

	_, err := a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, def), prediction.Key{})
	assert.True(t, errors.Is(err, attribute.ErrMissingAttributeSet))
	assert.Equal(t, 100.0, a.value(t, "Speed"))

	_, err = a.comp.ApplyGameplayEffectSpecToSelf(nil, prediction.Key{})
	assert.True(t, errors.Is(err, effect.ErrNilDefinition))

	_, err = a.comp.GetNumericAttribute("Mana")
	assert.True(t, errors.Is(err, attribute.ErrMissingAttributeSet))
}

func TestApply_ChanceToApply(t *testing.T) {
	def := &effect.Definition{
		Name:           "Lucky",
		DurationPolicy: effect.Instant,
		ChanceToApply:  0.5,
		Modifiers:      []effect.ModifierInfo{{Attribute: "Health", Op: attribute.OpAdd, Magnitude: effect.Flat(1)}},
	}

	unlucky := newActor(t, "hero", true, func(o *Options) { o.Roller = fixedRoll(0.9) })
	_, err := unlucky.comp.ApplyGameplayEffectSpecToSelf(unlucky.spec(t, def), prediction.Key{})
	assert.True(t, errors.Is(err, ErrApplicationRolledOut))
	assert.Equal(t, 50.0, unlucky.value(t, "Health"))

	lucky := newActor(t, "hero", true, func(o *Options) { o.Roller = fixedRoll(0.1) })
	_, err = lucky.comp.ApplyGameplayEffectSpecToSelf(lucky.spec(t, def), prediction.Key{})
	require.NoError(t, err)
	assert.Equal(t, 51.0, lucky.value(t, "Health"))
}

func TestApply_UnauthorizedWithoutKey(t *testing.T) {
	client := newActor(t, "hero", false)

	_, err := client.comp.ApplyGameplayEffectSpecToSelf(client.spec(t, haste), prediction.Key{})
	assert.True(t, errors.Is(err, ErrUnauthorized))

	old := client.comp.NewPredictionKey()
	client.comp.NewPredictionKey()
	_, err = client.comp.ApplyGameplayEffectSpecToSelf(client.spec(t, haste), old)
	assert.True(t, errors.Is(err, ErrUnauthorized), "superseded key")

	assert.Equal(t, 0, client.comp.Effects().Len())
	assert.Equal(t, 100.0, client.value(t, "Speed"))
	assert.Empty(t, client.cues.Invocations)
	assert.Equal(t, 0, client.comp.Ledger().PendingCount())
}

func TestPrediction_InstantConfirmed(t *testing.T) {
	server := newActor(t, "hero", true)
	client := newActor(t, "hero", false)

	key := client.comp.NewPredictionKey()
	res, err := client.comp.ApplyGameplayEffectSpecToSelf(client.spec(t, heal), key)
	require.NoError(t, err)
	assert.True(t, res.Predicted)
	assert.Equal(t, 60.0, client.value(t, "Health"))
	assert.Equal(t, 50.0, client.base(t, "Health"))
	assert.Equal(t, 1, client.comp.Effects().Len(), "stand-in stays addressable")
	assert.Equal(t, 1, client.cues.Count("Cue.Heal", cue.Executed))

	_, err = server.comp.ApplyGameplayEffectSpecToSelf(server.spec(t, heal), key)
	require.NoError(t, err)

	latest, accepted := server.comp.PredictionOutcomes()
	got := client.comp.ReplicatedPredictionKeyChanged(latest, accepted)
	assert.Equal(t, prediction.CatchUpResult{Confirmed: 1}, got)
	assert.Equal(t, 60.0, client.value(t, "Health"))
	assert.Equal(t, 60.0, client.base(t, "Health"))
	assert.Equal(t, 0, client.comp.Effects().Len())

	again := client.comp.ReplicatedPredictionKeyChanged(latest, accepted)
	assert.Equal(t, prediction.CatchUpResult{}, again)
	assert.Equal(t, 60.0, client.value(t, "Health"))
	assert.Equal(t, 1, client.cues.Count("Cue.Heal", cue.Executed))
}

func TestPrediction_InstantRejected(t *testing.T) {
	server := newActor(t, "hero", true)
	client := newActor(t, "hero", false)
	server.comp.AddLooseTag("State.Immune", 1)

	guarded := *heal
	guarded.ApplicationRequirements = tag.Requirements{Ignore: tag.NewContainer("State.Immune")}

	key := client.comp.NewPredictionKey()
	_, err := client.comp.ApplyGameplayEffectSpecToSelf(client.spec(t, &guarded), key)
	require.NoError(t, err)
	assert.Equal(t, 60.0, client.value(t, "Health"))

	_, err = server.comp.ApplyGameplayEffectSpecToSelf(server.spec(t, &guarded), key)
	require.True(t, errors.Is(err, ErrTagRequirementNotMet))

	latest, accepted := server.comp.PredictionOutcomes()
	assert.Equal(t, key, latest)
	got := client.comp.ReplicatedPredictionKeyChanged(latest, accepted)
	assert.Equal(t, prediction.CatchUpResult{Rejected: 1}, got)
	assert.Equal(t, 50.0, client.value(t, "Health"))
	assert.Equal(t, 0, client.comp.Effects().Len())
	assert.Zero(t, client.cues.Count("Cue.Heal", cue.Removed))
}

func TestPrediction_DurationalSwappedByReplication(t *testing.T) {
	server := newActor(t, "hero", true)
	client := newActor(t, "hero", false)

	key := client.comp.NewPredictionKey()
	_, err := client.comp.ApplyGameplayEffectSpecToSelf(client.spec(t, haste), key)
	require.NoError(t, err)
	assert.Equal(t, 200.0, client.value(t, "Speed"))

	sres, err := server.comp.ApplyGameplayEffectSpecToSelf(server.spec(t, haste), key)
	require.NoError(t, err)

	client.comp.OnReplicatedEffectsChanged(server.comp.ReplicatedEffects())
	latest, accepted := server.comp.PredictionOutcomes()
	assert.Equal(t, prediction.CatchUpResult{Confirmed: 1}, client.comp.ReplicatedPredictionKeyChanged(latest, accepted))

	require.Equal(t, 1, client.comp.Effects().Len())
	ae := client.comp.Effects().GetActiveEffects(effect.MatchAll())[0]
	assert.Equal(t, cue.OriginReplicated, ae.Origin())
	assert.Equal(t, 200.0, client.value(t, "Speed"))
	assert.Equal(t, 1, client.comp.Tags().Count("State.Buff.Haste"))
	assert.Equal(t, []cue.Event{cue.OnActive, cue.WhileActive}, client.cues.Events("Cue.Haste"))

	require.True(t, server.comp.RemoveActiveEffect(sres.Handle))
	client.comp.OnReplicatedEffectsChanged(server.comp.ReplicatedEffects())
	assert.Equal(t, 0, client.comp.Effects().Len())
	assert.Equal(t, 100.0, client.value(t, "Speed"))
	assert.Equal(t, []cue.Event{cue.OnActive, cue.WhileActive, cue.Removed}, client.cues.Events("Cue.Haste"))
}

func TestPrediction_DurationalRejected(t *testing.T) {
	server := newActor(t, "hero", true)
	client := newActor(t, "hero", false)
	server.comp.AddLooseTag("State.Immune", 1)

	guarded := *haste
	guarded.ApplicationRequirements = tag.Requirements{Ignore: tag.NewContainer("State.Immune")}

	key := client.comp.NewPredictionKey()
	_, err := client.comp.ApplyGameplayEffectSpecToSelf(client.spec(t, &guarded), key)
	require.NoError(t, err)
	_, err = server.comp.ApplyGameplayEffectSpecToSelf(server.spec(t, &guarded), key)
	require.Error(t, err)

	client.comp.OnReplicatedEffectsChanged(server.comp.ReplicatedEffects())
	latest, accepted := server.comp.PredictionOutcomes()
	client.comp.ReplicatedPredictionKeyChanged(latest, accepted)

	assert.Equal(t, 0, client.comp.Effects().Len())
	assert.Equal(t, 100.0, client.value(t, "Speed"))
	assert.Equal(t, 0, client.comp.Tags().Count("State.Buff.Haste"))
	assert.Equal(t, []cue.Event{cue.OnActive, cue.WhileActive, cue.Removed}, client.cues.Events("Cue.Haste"))
}

func TestReplication_LateJoinFiresWhileActiveOnly(t *testing.T) {
	server := newActor(t, "hero", true)
	_, err := server.comp.ApplyGameplayEffectSpecToSelf(server.spec(t, haste), prediction.Key{})
	require.NoError(t, err)
	server.timers.Advance(2 * time.Second)

	client := newActor(t, "hero", false)
	client.comp.OnReplicatedEffectsChanged(server.comp.ReplicatedEffects())
	assert.Equal(t, []cue.Event{cue.WhileActive}, client.cues.Events("Cue.Haste"))
	assert.Equal(t, []time.Duration{3 * time.Second}, client.comp.Effects().GetActiveEffectsTimeRemaining(effect.MatchAll()))

	// Local expiry ahead of the authority does not resurrect the effect.
	client.timers.Advance(3 * time.Second)
	assert.Equal(t, 0, client.comp.Effects().Len())
	client.comp.OnReplicatedEffectsChanged(server.comp.ReplicatedEffects())
	assert.Equal(t, 0, client.comp.Effects().Len())
}

func TestApply_RemoveEffectsWithTags(t *testing.T) {
	a := newActor(t, "hero", true)

	_, err := a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, poison), prediction.Key{})
	require.NoError(t, err)
	a.timers.Advance(3 * time.Second)
	assert.Equal(t, 44.0, a.value(t, "Health"))

	_, err = a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, cleanse), prediction.Key{})
	require.NoError(t, err)
	assert.Equal(t, 0, a.comp.Effects().Len())

	a.timers.Advance(5 * time.Second)
	assert.Equal(t, 44.0, a.value(t, "Health"))
}

func TestSnapshotRestore(t *testing.T) {
	a := newActor(t, "hero", true)
	require.NoError(t, a.comp.SetNumericAttribute("Health", 80))
	_, err := a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, haste), prediction.Key{})
	require.NoError(t, err)
	_, err = a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, plating), prediction.Key{})
	require.NoError(t, err)
	a.timers.Advance(4 * time.Second)

	st := a.comp.Snapshot()

	b := newActor(t, "hero", true)
	n, err := b.comp.Restore(st)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 80.0, b.value(t, "Health"))
	assert.Equal(t, 200.0, b.value(t, "Speed"))
	assert.Equal(t, 5.0, b.value(t, "Armor"))

	b.timers.Advance(time.Second)
	assert.Equal(t, 100.0, b.value(t, "Speed"))

	_, err = b.comp.Restore(st)
	assert.Error(t, err, "restore into a populated component")
}

func TestOnAttributeChanged(t *testing.T) {
	a := newActor(t, "hero", true)

	var got []float64
	cancel, err := a.comp.OnAttributeChanged("Speed", func(_ attribute.Attribute, v float64) { got = append(got, v) })
	require.NoError(t, err)

	_, err = a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, haste), prediction.Key{})
	require.NoError(t, err)
	a.timers.Advance(5 * time.Second)
	cancel()
	require.NoError(t, a.comp.SetNumericAttribute("Speed", 1))

	assert.Equal(t, []float64{200, 100}, got)

	_, err = a.comp.OnAttributeChanged("Mana", func(attribute.Attribute, float64) {})
	assert.True(t, errors.Is(err, attribute.ErrMissingAttributeSet))
}

func TestHandleMulticastCue(t *testing.T) {
	server := newActor(t, "hero", true, func(o *Options) { o.Multicaster = &cue.Recorder{} })
	client := newActor(t, "hero", false)

	key := client.comp.NewPredictionKey()
	client.comp.HandleMulticastCue("Cue.Heal", cue.Executed, cue.Parameters{PredictionKey: key})
	assert.Empty(t, client.cues.Invocations, "already predicted locally")

	client.comp.HandleMulticastCue("Cue.Heal", cue.OnActive, cue.Parameters{})
	assert.Empty(t, client.cues.Invocations, "lifecycle events come with replication")

	client.comp.HandleMulticastCue("Cue.Heal", cue.Executed, cue.Parameters{})
	require.Len(t, client.cues.Invocations, 1)
	assert.Equal(t, cue.OriginReplicated, client.cues.Invocations[0].Params.Origin)

	server.comp.HandleMulticastCue("Cue.Heal", cue.Executed, cue.Parameters{})
	assert.Empty(t, server.cues.Invocations)
}

func TestApply_StackingRejectionKeepsTaggedEffects(t *testing.T) {
	ward := func(armor float64) *effect.Definition {
		return &effect.Definition{
			Name:                  "Ward",
			DurationPolicy:        effect.Infinite,
			Stacking:              effect.StackHighest,
			Modifiers:             []effect.ModifierInfo{{Attribute: "Armor", Op: attribute.OpAdd, Magnitude: effect.Flat(armor)}},
			RemoveEffectsWithTags: tag.NewContainer("Effect.Debuff"),
		}
	}
	a := newActor(t, "hero", true)

	_, err := a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, poison), prediction.Key{})
	require.NoError(t, err)
	strong := *ward(10)
	strong.RemoveEffectsWithTags = tag.Container{}
	_, err = a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, &strong), prediction.Key{})
	require.NoError(t, err)

	_, err = a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, ward(3)), prediction.Key{})
	assert.True(t, errors.Is(err, effect.ErrStackingRejected))
	assert.Equal(t, 2, a.comp.Effects().Len())
	assert.Equal(t, 10.0, a.value(t, "Armor"))
	a.timers.Advance(time.Second)
	assert.Equal(t, 48.0, a.value(t, "Health"), "poison still ticks")

	_, err = a.comp.ApplyGameplayEffectSpecToSelf(a.spec(t, ward(12)), prediction.Key{})
	require.NoError(t, err)
	assert.Equal(t, 1, a.comp.Effects().Len())
	assert.Equal(t, 12.0, a.value(t, "Armor"))
	assert.Empty(t, a.comp.Effects().GetActiveEffects(effect.ByDefinition("Poison")))
}

func TestPrediction_RejectedCleanseRestoresReplicatedEffects(t *testing.T) {
	purge := &effect.Definition{
		Name:                    "Purge",
		DurationPolicy:          effect.Instant,
		RemoveEffectsWithTags:   tag.NewContainer("State.Buff"),
		ApplicationRequirements: tag.Requirements{Ignore: tag.NewContainer("State.Immune")},
	}
	server := newActor(t, "hero", true)
	client := newActor(t, "hero", false)

	_, err := server.comp.ApplyGameplayEffectSpecToSelf(server.spec(t, haste), prediction.Key{})
	require.NoError(t, err)
	client.comp.OnReplicatedEffectsChanged(server.comp.ReplicatedEffects())
	require.Equal(t, 200.0, client.value(t, "Speed"))

	server.timers.Advance(time.Second)
	client.timers.Advance(time.Second)
	server.comp.AddLooseTag("State.Immune", 1)

	key := client.comp.NewPredictionKey()
	_, err = client.comp.ApplyGameplayEffectSpecToSelf(client.spec(t, purge), key)
	require.NoError(t, err)
	assert.Equal(t, 100.0, client.value(t, "Speed"))

	_, err = server.comp.ApplyGameplayEffectSpecToSelf(server.spec(t, purge), key)
	require.True(t, errors.Is(err, ErrTagRequirementNotMet))

	client.comp.OnReplicatedEffectsChanged(server.comp.ReplicatedEffects())
	assert.Equal(t, 100.0, client.value(t, "Speed"), "still pending")

	client.timers.Advance(time.Second)
	latest, accepted := server.comp.PredictionOutcomes()
	assert.Equal(t, prediction.CatchUpResult{Rejected: 1}, client.comp.ReplicatedPredictionKeyChanged(latest, accepted))

	require.Equal(t, 1, client.comp.Effects().Len())
	assert.Equal(t, 200.0, client.value(t, "Speed"))
	assert.Equal(t, 1, client.comp.Tags().Count("State.Buff.Haste"))
	assert.Equal(t, []time.Duration{3 * time.Second}, client.comp.Effects().GetActiveEffectsTimeRemaining(effect.MatchAll()))
	assert.Equal(t, []cue.Event{cue.WhileActive, cue.Removed, cue.WhileActive}, client.cues.Events("Cue.Haste"))

	client.comp.OnReplicatedEffectsChanged(server.comp.ReplicatedEffects())
	assert.Equal(t, 1, client.comp.Effects().Len())
	assert.Equal(t, 200.0, client.value(t, "Speed"))
}

func TestReplication_FailedSwapRemovesPredictedCopy(t *testing.T) {
	server := newActor(t, "hero", true)
	client := newActor(t, "hero", false)

	key := client.comp.NewPredictionKey()
	_, err := client.comp.ApplyGameplayEffectSpecToSelf(client.spec(t, haste), key)
	require.NoError(t, err)
	_, err = server.comp.ApplyGameplayEffectSpecToSelf(server.spec(t, haste), key)
	require.NoError(t, err)

	list := server.comp.ReplicatedEffects()
	require.Len(t, list, 1)
	list[0].Elapsed = 10 * time.Second
	client.comp.OnReplicatedEffectsChanged(list)

	assert.Equal(t, 0, client.comp.Effects().Len())
	assert.Equal(t, 100.0, client.value(t, "Speed"))
	assert.Equal(t, []cue.Event{cue.OnActive, cue.WhileActive, cue.Removed}, client.cues.Events("Cue.Haste"))

	latest, accepted := server.comp.PredictionOutcomes()
	client.comp.ReplicatedPredictionKeyChanged(latest, accepted)
	client.timers.Advance(10 * time.Second)
	assert.Equal(t, 1, client.cues.Count("Cue.Haste", cue.Removed))
}
