// Package abilitysystem is the per-actor owner of attributes, tags, active
// effects and prediction state. One Component per actor, driven from a single
// gameplay tick.
package abilitysystem

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/cue"
	"github.com/udisondev/gameplayfx/internal/game/effect"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
	"github.com/udisondev/gameplayfx/internal/game/tag"
	"github.com/udisondev/gameplayfx/internal/game/timer"
)

var (
	ErrUnauthorized         = errors.New("no authority and no valid prediction key")
	ErrTagRequirementNotMet = errors.New("tag requirements not met")
	ErrApplicationRolledOut = errors.New("application rolled out")
	ErrUnknownDefinition    = errors.New("unknown effect definition")
	ErrNilTarget            = errors.New("nil target ability system")
)

// Definitions resolves effect definitions by name.
type Definitions interface {
	Definition(name string) (*effect.Definition, bool)
}

// Roller draws uniform values in [0,1) for chance-to-apply. *rand.Rand satisfies it.
type Roller interface {
	Float64() float64
}

// Options configures a Component.
type Options struct {
	Owner       actor.ID
	Avatar      actor.ID // defaults to Owner
	Authority   bool
	Sets        []*attribute.Set
	Timers      timer.Scheduler // defaults to a private timer.Manager
	Consumer    cue.Consumer
	Multicaster cue.Multicaster // authority only
	Definitions Definitions     // needed for replication and restore
	Roller      Roller          // defaults to a fixed-seed PCG
	Identity    actor.IdentityResolver
}

// Component is the ability system of one actor.
type Component struct {
	owner     actor.ID
	avatar    actor.ID
	authority bool

	sets    []*attribute.Set
	tags    *tag.CountContainer
	effects *effect.Container
	timers  timer.Scheduler
	cues    *cue.Dispatcher

	defs     Definitions
	roller   Roller
	identity actor.IdentityResolver

	ledger  *prediction.Ledger  // non-authority
	journal *prediction.Journal // authority

	synced bool
	seen   map[uint64]struct{}

	// Last replicated list and the local time it arrived.
	lastList   []effect.Replicated
	lastListAt time.Duration
}

// New creates a component from opts.
func New(opts Options) *Component {
	if opts.Avatar == "" {
		opts.Avatar = opts.Owner
	}
	if opts.Timers == nil {
		opts.Timers = timer.NewManager()
	}
	if opts.Roller == nil {
		opts.Roller = rand.New(rand.NewPCG(1, 2))
	}
	if opts.Identity == nil {
		opts.Identity = actor.SelfOwned{}
	}

	c := &Component{
		owner:     opts.Owner,
		avatar:    opts.Avatar,
		authority: opts.Authority,
		sets:      opts.Sets,
		tags:      tag.NewCountContainer(),
		timers:    opts.Timers,
		defs:      opts.Definitions,
		roller:    opts.Roller,
		identity:  opts.Identity,
		seen:      make(map[uint64]struct{}),
	}

	dispatchOpts := []cue.Option{}
	if opts.Authority {
		c.journal = prediction.NewJournal()
		if opts.Multicaster != nil {
			dispatchOpts = append(dispatchOpts, cue.WithMulticaster(opts.Multicaster))
		}
	} else {
		c.ledger = prediction.NewLedger()
		dispatchOpts = append(dispatchOpts, cue.WithKeyValidator(c.ledger))
	}
	c.cues = cue.NewDispatcher(opts.Owner, opts.Authority, opts.Consumer, dispatchOpts...)
	c.effects = effect.NewContainer(opts.Owner, c, opts.Timers, c.cues)
	return c
}

// Owner returns the owning actor.
func (c *Component) Owner() actor.ID { return c.owner }

// Avatar returns the avatar actor.
func (c *Component) Avatar() actor.ID { return c.avatar }

// IsAuthority reports whether this is the authoritative instance.
func (c *Component) IsAuthority() bool { return c.authority }

// Tags returns the aggregated tag counts: granted by effects plus loose tags.
func (c *Component) Tags() *tag.CountContainer { return c.tags }

// Effects returns the active effects container.
func (c *Component) Effects() *effect.Container { return c.effects }

// Timers returns the scheduler driving duration and period callbacks.
func (c *Component) Timers() timer.Scheduler { return c.timers }

// Ledger returns the prediction ledger; nil on the authority.
func (c *Component) Ledger() *prediction.Ledger { return c.ledger }

// Aggregator finds the aggregator for attr across all attribute sets.
func (c *Component) Aggregator(attr attribute.Attribute) (*attribute.Aggregator, error) {
	for _, s := range c.sets {
		if s.Has(attr) {
			return s.Aggregator(attr)
		}
	}
	return nil, fmt.Errorf("attribute %q on %s: %w", attr, c.owner, attribute.ErrMissingAttributeSet)
}

// GetNumericAttribute returns the current aggregated value of attr.
func (c *Component) GetNumericAttribute(attr attribute.Attribute) (float64, error) {
	agg, err := c.Aggregator(attr)
	if err != nil {
		return 0, err
	}
	return agg.Evaluate(), nil
}

// GetBaseValue returns the base value of attr.
func (c *Component) GetBaseValue(attr attribute.Attribute) (float64, error) {
	agg, err := c.Aggregator(attr)
	if err != nil {
		return 0, err
	}
	return agg.Base(), nil
}

// SetNumericAttribute overwrites the base value of attr. Active contributions
// keep applying on top.
func (c *Component) SetNumericAttribute(attr attribute.Attribute, v float64) error {
	agg, err := c.Aggregator(attr)
	if err != nil {
		return err
	}
	agg.SetBase(v)
	return nil
}

// BaseValues returns every attribute's base value across all sets.
func (c *Component) BaseValues() map[attribute.Attribute]float64 {
	out := make(map[attribute.Attribute]float64)
	for _, s := range c.sets {
		for attr, v := range s.Snapshot() {
			out[attr] = v
		}
	}
	return out
}

// SetBaseValues applies replicated or restored base values. Unknown
// attributes are logged and skipped.
func (c *Component) SetBaseValues(values map[attribute.Attribute]float64) {
	for attr, v := range values {
		if err := c.SetNumericAttribute(attr, v); err != nil {
			slog.Warn("base value for unknown attribute",
				"owner", c.owner,
				"attribute", attr,
				"err", err)
		}
	}
}

// OnAttributeChanged calls fn with the new value whenever attr changes.
// The returned func cancels the subscription.
func (c *Component) OnAttributeChanged(attr attribute.Attribute, fn func(attr attribute.Attribute, value float64)) (func(), error) {
	agg, err := c.Aggregator(attr)
	if err != nil {
		return nil, err
	}
	id := agg.Subscribe(func(a attribute.Attribute) { fn(a, agg.Evaluate()) })
	return func() { agg.Unsubscribe(id) }, nil
}

// AddLooseTag adds count references to t outside of any effect.
func (c *Component) AddLooseTag(t tag.Tag, count int) {
	if count <= 0 {
		return
	}
	c.tags.UpdateTagCount(t, count)
}

// RemoveLooseTag drops count references to t.
func (c *Component) RemoveLooseTag(t tag.Tag, count int) {
	if count <= 0 {
		return
	}
	c.tags.UpdateTagCount(t, -count)
}

// NewPredictionKey mints a key for a speculative action. The authority never
// predicts and gets the zero key.
func (c *Component) NewPredictionKey() prediction.Key {
	if c.ledger == nil {
		return prediction.Key{}
	}
	return c.ledger.NewKey()
}

// MakeEffectContext stamps a context with this component's avatar as instigator.
func (c *Component) MakeEffectContext() effect.Context {
	return effect.NewContext(c.identity, c.avatar, "")
}

// MakeOutgoingSpec creates a spec for def with source attributes captured now.
func (c *Component) MakeOutgoingSpec(def *effect.Definition, level float64, ctx effect.Context) (*effect.Spec, error) {
	s, err := effect.NewSpec(def, ctx, level)
	if err != nil {
		return nil, err
	}
	if err := s.CaptureFrom(c, attribute.Outgoing); err != nil {
		return nil, err
	}
	return s, nil
}

// MakeOutgoingSpecByName resolves name through Definitions, then MakeOutgoingSpec.
func (c *Component) MakeOutgoingSpecByName(name string, level float64) (*effect.Spec, error) {
	def, err := c.definition(name)
	if err != nil {
		return nil, err
	}
	return c.MakeOutgoingSpec(def, level, c.MakeEffectContext())
}

func (c *Component) definition(name string) (*effect.Definition, error) {
	if c.defs == nil {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownDefinition)
	}
	def, ok := c.defs.Definition(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownDefinition)
	}
	return def, nil
}
