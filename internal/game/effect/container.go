package effect

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/cue"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
	"github.com/udisondev/gameplayfx/internal/game/tag"
	"github.com/udisondev/gameplayfx/internal/game/timer"
)

// InfiniteDuration is reported for effects that never expire.
const InfiniteDuration time.Duration = -1

// maxLinkedRefreshes bounds re-evaluation chains between linked captures.
const maxLinkedRefreshes = 64

// CueSink receives effect lifecycle cue events. cue.Dispatcher implements it.
type CueSink interface {
	InvokeGameplayCueEvent(t tag.Tag, event cue.Event, params cue.Parameters) bool
}

type linkSub struct {
	agg *attribute.Aggregator
	id  attribute.ObserverID
}

// ActiveEffect is a spec currently tracked by a Container.
// Only its Handle may be held across time by outside code.
type ActiveEffect struct {
	handle        Handle
	spec          *Spec
	start         time.Duration
	duration      time.Duration
	seq           uint64
	durationTimer timer.Handle
	periodTimer   timer.Handle
	origin        cue.Origin
	cueActive     bool
	silentCues    bool
	standIn       bool
	periodic      bool
	links         []linkSub
	executions    int
	replicatedID  uint64
}

// Handle returns the effect's handle.
func (ae *ActiveEffect) Handle() Handle { return ae.handle }

// Spec returns the applied spec.
func (ae *ActiveEffect) Spec() *Spec { return ae.spec }

// StartTime returns the simulation time the effect started.
func (ae *ActiveEffect) StartTime() time.Duration { return ae.start }

// Duration returns the total duration or InfiniteDuration.
func (ae *ActiveEffect) Duration() time.Duration { return ae.duration }

// IsInfinite reports whether the effect never expires on its own.
func (ae *ActiveEffect) IsInfinite() bool { return ae.duration == InfiniteDuration }

// Origin returns how the effect entered the container.
func (ae *ActiveEffect) Origin() cue.Origin { return ae.origin }

// IsStandIn reports whether this is a predicted instant effect held until catch-up.
func (ae *ActiveEffect) IsStandIn() bool { return ae.standIn }

// CuesActive reports whether OnActive fired and Removed is still owed.
func (ae *ActiveEffect) CuesActive() bool { return ae.cueActive }

// Executions returns how many periodic executions ran.
func (ae *ActiveEffect) Executions() int { return ae.executions }

// ReplicatedID returns the authority handle ID for replicated effects.
func (ae *ActiveEffect) ReplicatedID() uint64 { return ae.replicatedID }

// PredictionKey returns the key the effect was predicted under.
func (ae *ActiveEffect) PredictionKey() prediction.Key { return ae.spec.PredictionKey() }

// EndTime returns start+duration; false for infinite effects.
func (ae *ActiveEffect) EndTime() (time.Duration, bool) {
	if ae.IsInfinite() {
		return 0, false
	}
	return ae.start + ae.duration, true
}

// TimeRemaining returns max(0, start+duration-now), or InfiniteDuration.
func (ae *ActiveEffect) TimeRemaining(now time.Duration) time.Duration {
	end, ok := ae.EndTime()
	if !ok {
		return InfiniteDuration
	}
	return max(0, end-now)
}

// OwningTags returns the asset tags plus the granted tags.
func (ae *ActiveEffect) OwningTags() tag.Container {
	def := ae.spec.Definition()
	out := tag.NewContainer(def.AssetTags.Tags()...)
	out.AppendTags(def.GrantedTags)
	return out
}

// AddOptions tunes how a spec enters the container.
type AddOptions struct {
	Origin       cue.Origin
	LateJoin     bool          // replicated after it started: WhileActive only
	SilentCues   bool          // no lifecycle cues at all
	CuesActive   bool          // OnActive already fired for a predicted counterpart
	Elapsed      time.Duration // time already elapsed on the authority
	StandIn      bool          // predicted instant held as infinite until caught up
	ReplicatedID uint64

	// Displace removes effects owning any of these tags once the spec is
	// admitted. Displaced effects do not compete with it for stacking.
	Displace tag.Container
	// OnDisplaced sees each displaced effect just before it is removed.
	OnDisplaced func(ae *ActiveEffect)
	// Supersede is a counterpart the new effect takes over: removed without
	// cues once the spec is admitted, left untouched when it is not.
	Supersede Handle
}

// displaces reports whether ae makes way for a spec added with opts.
func (opts AddOptions) displaces(ae *ActiveEffect) bool {
	if opts.Supersede.IsValid() && ae.handle == opts.Supersede {
		return true
	}
	return !opts.Displace.IsEmpty() && Query{OwningTagsAny: opts.Displace}.Matches(ae)
}

// Container owns the active effects of one ability system: timing, stacking,
// aggregator contributions and granted tags.
//
// Single-threaded: all calls, including timer callbacks, come from the
// owning tick.
type Container struct {
	owner  actor.ID
	target Target
	timers timer.Scheduler
	cues   CueSink

	arena  arena
	active []*ActiveEffect
	seq    uint64

	refreshQueue []Handle
	refreshing   bool
}

// NewContainer creates an empty container. cues may be nil.
func NewContainer(owner actor.ID, target Target, timers timer.Scheduler, cues CueSink) *Container {
	return &Container{owner: owner, target: target, timers: timers, cues: cues}
}

// Len returns the number of active effects.
func (c *Container) Len() int {
	return len(c.active)
}

// Get resolves a handle. Stale or unknown handles return false.
func (c *Container) Get(h Handle) (*ActiveEffect, bool) {
	ae := c.arena.get(h)
	return ae, ae != nil
}

// IsActive reports whether h identifies a live effect.
func (c *Container) IsActive(h Handle) bool {
	return c.arena.get(h) != nil
}

// CreateNewActiveEffect inserts s with default options.
func (c *Container) CreateNewActiveEffect(s *Spec) (Handle, error) {
	return c.CreateNewActiveEffectWith(s, AddOptions{})
}

// CreateNewActiveEffectWith inserts s: contributions, granted tags, timers,
// OnActive/WhileActive cues, then stacking resolution. Every check runs before
// anything is displaced, so a rejected spec leaves the container unchanged.
func (c *Container) CreateNewActiveEffectWith(s *Spec, opts AddOptions) (Handle, error) {
	if s == nil || s.Definition() == nil {
		return Handle{}, ErrNilDefinition
	}
	def := s.Definition()
	if def.DurationPolicy == Instant && !opts.StandIn {
		return Handle{}, fmt.Errorf("%q: %w", def.Name, ErrInstantEffect)
	}

	duration := s.Duration()
	if opts.StandIn {
		duration = InfiniteDuration
	}
	if duration != InfiniteDuration && opts.Elapsed >= duration {
		return Handle{}, fmt.Errorf("%q elapsed %s of %s: %w", def.Name, opts.Elapsed, duration, ErrAlreadyExpired)
	}

	periodic := def.IsPeriodic() && !opts.StandIn
	s.CalculateModifierMagnitudes()

	// Periodic effects act on base values at each boundary and hold no contributions.
	var aggs []*attribute.Aggregator
	if !periodic {
		aggs = make([]*attribute.Aggregator, len(def.Modifiers))
		for i, m := range def.Modifiers {
			agg, err := c.target.Aggregator(m.Attribute)
			if err != nil {
				return Handle{}, fmt.Errorf("activating %q: %w", def.Name, err)
			}
			aggs[i] = agg
		}
	}

	if !opts.StandIn && !c.wouldWinStacking(s, opts.displaces) {
		slog.Debug("stacking rejected new spec",
			"owner", c.owner,
			"effect", def.Name,
			"magnitude", s.StackingMagnitude())
		return Handle{}, fmt.Errorf("%q: %w", def.Name, ErrStackingRejected)
	}

	if sup := c.arena.get(opts.Supersede); sup != nil {
		c.remove(sup, true)
	}
	if !opts.Displace.IsEmpty() {
		for _, old := range c.GetActiveEffects(Query{OwningTagsAny: opts.Displace}) {
			if c.arena.get(old.handle) != old {
				continue
			}
			if opts.OnDisplaced != nil {
				opts.OnDisplaced(old)
			}
			c.remove(old, false)
		}
	}

	now := c.timers.Now()
	c.seq++
	ae := &ActiveEffect{
		spec:         s,
		start:        now - opts.Elapsed,
		duration:     duration,
		seq:          c.seq,
		origin:       opts.Origin,
		silentCues:   opts.SilentCues || opts.StandIn,
		standIn:      opts.StandIn,
		periodic:     periodic,
		replicatedID: opts.ReplicatedID,
	}
	ae.handle = c.arena.insert(ae)
	c.active = append(c.active, ae)
	h := ae.handle

	if !periodic {
		for i, m := range def.Modifiers {
			aggs[i].AddContribution(attribute.Contribution{
				Op:        m.Op,
				Magnitude: s.ModifierMagnitude(i),
				Callback:  m.Callback,
				Owner:     h.OwnerID(),
			})
		}
		c.subscribeLinks(ae, aggs)
	}
	c.target.Tags().UpdateTags(def.GrantedTags, 1)

	if !ae.IsInfinite() {
		ae.durationTimer = c.timers.ScheduleOnce(ae.TimeRemaining(now), func() { c.CheckDuration(h) })
	}
	// The authority replicates base values, so replicated periodic effects never tick locally.
	runsPeriodic := periodic && opts.Origin != cue.OriginReplicated
	if runsPeriodic {
		first := def.Period
		if opts.Elapsed > 0 {
			first = def.Period - opts.Elapsed%def.Period
		}
		ae.periodTimer = c.timers.ScheduleOnce(first, func() { c.ExecutePeriodicEffect(h) })
	}

	switch {
	case ae.silentCues:
	case opts.CuesActive:
		ae.cueActive = true
	default:
		if !opts.LateJoin {
			c.invokeCues(ae, cue.OnActive)
		}
		c.invokeCues(ae, cue.WhileActive)
		ae.cueActive = true
	}

	if runsPeriodic && def.ExecutePeriodicOnApplication && opts.Elapsed == 0 {
		c.executePeriodic(ae)
	}

	slog.Debug("active effect added",
		"owner", c.owner,
		"effect", def.Name,
		"handle", h,
		"duration", duration,
		"period", s.Period())

	c.RecalculateStacking()
	return h, nil
}

// RemoveActiveEffect removes h: contributions, granted tags, timers and the
// Removed cue all happen before it returns. Unknown or stale handles return false.
func (c *Container) RemoveActiveEffect(h Handle) bool {
	ae := c.arena.get(h)
	if ae == nil {
		return false
	}
	c.remove(ae, false)
	c.RecalculateStacking()
	return true
}

// RemoveActiveEffectSilently removes h without firing Removed. Used when a
// predicted effect is swapped for its replicated counterpart.
func (c *Container) RemoveActiveEffectSilently(h Handle) bool {
	ae := c.arena.get(h)
	if ae == nil {
		return false
	}
	c.remove(ae, true)
	return true
}

// RemoveActiveEffects removes every effect matching q, in application order.
func (c *Container) RemoveActiveEffects(q Query) int {
	n := 0
	for _, ae := range c.GetActiveEffects(q) {
		if c.arena.get(ae.handle) == ae {
			c.remove(ae, false)
			n++
		}
	}
	if n > 0 {
		c.RecalculateStacking()
	}
	return n
}

// CommitStandIn folds a confirmed predicted instant effect into base values:
// the stand-in's contributions are replaced by a one-time execution, so the
// observed value does not change.
func (c *Container) CommitStandIn(h Handle) error {
	ae := c.arena.get(h)
	if ae == nil || !ae.standIn {
		return fmt.Errorf("commit %s: not an active stand-in", h)
	}
	c.remove(ae, true)
	return ExecuteSpec(c.target, ae.spec)
}

// CheckDuration expires h if its time is up. Called by the duration timer.
// When a period boundary falls on the expiry instant, the final periodic
// execution runs first.
func (c *Container) CheckDuration(h Handle) {
	ae := c.arena.get(h)
	if ae == nil || ae.IsInfinite() {
		return
	}
	if ae.durationTimer.IsValid() {
		c.timers.Cancel(ae.durationTimer)
		ae.durationTimer = 0
	}

	now := c.timers.Now()
	if remaining := ae.TimeRemaining(now); remaining > 0 {
		ae.durationTimer = c.timers.ScheduleOnce(remaining, func() { c.CheckDuration(h) })
		return
	}

	if ae.periodTimer.IsValid() {
		if left, ok := c.timers.TimeRemaining(ae.periodTimer); ok && left <= 0 {
			c.timers.Cancel(ae.periodTimer)
			ae.periodTimer = 0
			c.executePeriodic(ae)
			if c.arena.get(h) != ae {
				return
			}
		}
	}

	slog.Debug("active effect expired",
		"owner", c.owner,
		"effect", ae.spec.Definition().Name,
		"handle", h)
	c.remove(ae, false)
	c.RecalculateStacking()
}

// ExecutePeriodicEffect runs one periodic execution of h and schedules the
// next boundary. Does nothing once the effect has expired.
func (c *Container) ExecutePeriodicEffect(h Handle) {
	ae := c.arena.get(h)
	if ae == nil || !ae.periodic {
		return
	}
	if ae.periodTimer.IsValid() {
		c.timers.Cancel(ae.periodTimer)
		ae.periodTimer = 0
	}

	now := c.timers.Now()
	end, finite := ae.EndTime()
	if finite && now > end {
		return
	}

	c.executePeriodic(ae)
	if c.arena.get(h) != ae {
		return
	}
	if finite && now+ae.spec.Period() > end {
		return
	}
	ae.periodTimer = c.timers.ScheduleOnce(ae.spec.Period(), func() { c.ExecutePeriodicEffect(h) })
}

func (c *Container) executePeriodic(ae *ActiveEffect) {
	if err := ExecuteSpec(c.target, ae.spec); err != nil {
		slog.Error("periodic execution failed",
			"owner", c.owner,
			"effect", ae.spec.Definition().Name,
			"err", err)
		return
	}
	ae.executions++
	c.invokeCues(ae, cue.Executed)
}

// remove detaches ae completely. Callers handle stacking recalculation.
func (c *Container) remove(ae *ActiveEffect, silent bool) {
	if !c.arena.release(ae.handle) {
		return
	}
	c.active = slices.DeleteFunc(c.active, func(x *ActiveEffect) bool { return x == ae })
	c.refreshQueue = slices.DeleteFunc(c.refreshQueue, func(h Handle) bool { return h == ae.handle })

	if ae.durationTimer.IsValid() {
		c.timers.Cancel(ae.durationTimer)
		ae.durationTimer = 0
	}
	if ae.periodTimer.IsValid() {
		c.timers.Cancel(ae.periodTimer)
		ae.periodTimer = 0
	}
	for _, l := range ae.links {
		l.agg.Unsubscribe(l.id)
	}
	ae.links = nil

	def := ae.spec.Definition()
	owner := ae.handle.OwnerID()
	for _, attr := range def.Attributes() {
		if agg, err := c.target.Aggregator(attr); err == nil {
			agg.RemoveContributionsBy(owner)
		}
	}
	c.target.Tags().UpdateTags(def.GrantedTags, -1)

	if ae.cueActive && !silent {
		c.invokeCues(ae, cue.Removed)
	}
	ae.cueActive = false

	slog.Debug("active effect removed",
		"owner", c.owner,
		"effect", def.Name,
		"handle", ae.handle,
		"silent", silent)
}

// GetActiveEffects returns matching effects in application order.
func (c *Container) GetActiveEffects(q Query) []*ActiveEffect {
	var out []*ActiveEffect
	for _, ae := range c.active {
		if q.Matches(ae) {
			out = append(out, ae)
		}
	}
	return out
}

// GetActiveEffectsTimeRemaining returns max(0, start+duration-now) per
// matching effect, InfiniteDuration for infinite ones.
func (c *Container) GetActiveEffectsTimeRemaining(q Query) []time.Duration {
	now := c.timers.Now()
	var out []time.Duration
	for _, ae := range c.GetActiveEffects(q) {
		out = append(out, ae.TimeRemaining(now))
	}
	return out
}

// GetActiveEffectsDuration returns the total duration per matching effect.
func (c *Container) GetActiveEffectsDuration(q Query) []time.Duration {
	var out []time.Duration
	for _, ae := range c.GetActiveEffects(q) {
		out = append(out, ae.duration)
	}
	return out
}

// FindByReplicatedID returns the effect replicated under an authority handle ID.
func (c *Container) FindByReplicatedID(id uint64) (*ActiveEffect, bool) {
	for _, ae := range c.active {
		if ae.replicatedID == id && id != 0 {
			return ae, true
		}
	}
	return nil, false
}

// FindPredicted returns the oldest non-replicated effect predicted under k for
// the named definition.
func (c *Container) FindPredicted(k prediction.Key, name string) (*ActiveEffect, bool) {
	if !k.IsValid() {
		return nil, false
	}
	for _, ae := range c.active {
		if ae.origin == cue.OriginPredicted && !ae.standIn && ae.spec.PredictionKey() == k && ae.spec.Definition().Name == name {
			return ae, true
		}
	}
	return nil, false
}

func (c *Container) invokeCues(ae *ActiveEffect, event cue.Event) {
	if c.cues == nil || ae.silentCues {
		return
	}
	InvokeSpecCues(c.cues, ae.spec, event, ae.origin)
}

// InvokeSpecCues fires event for every cue tag of the spec's definition.
func InvokeSpecCues(sink CueSink, s *Spec, event cue.Event, origin cue.Origin) {
	def := s.Definition()
	for _, ci := range def.Cues {
		params := CueParameters(s, ci, origin)
		for _, t := range ci.Tags.Tags() {
			sink.InvokeGameplayCueEvent(t, event, params)
		}
	}
}

// CueParameters builds the cue payload for one cue binding of s.
func CueParameters(s *Spec, ci CueInfo, origin cue.Origin) cue.Parameters {
	ctx := s.Context()
	return cue.Parameters{
		RawMagnitude:        s.StackingMagnitude(),
		NormalizedMagnitude: cue.Normalize(s.Level(), ci.MinLevel, ci.MaxLevel),
		Level:               s.Level(),
		Instigator:          ctx.Instigator,
		Causer:              ctx.Causer,
		SourceTags:          ctx.SourceTags,
		EffectName:          s.Definition().Name,
		EffectContext:       ctx,
		PredictionKey:       s.PredictionKey(),
		Origin:              origin,
	}
}

func (c *Container) subscribeLinks(ae *ActiveEffect, modified []*attribute.Aggregator) {
	h := ae.handle
	for _, lc := range ae.spec.LinkedCaptures() {
		agg := lc.Aggregator()
		if agg == nil || slices.Contains(modified, agg) {
			continue
		}
		if slices.ContainsFunc(ae.links, func(l linkSub) bool { return l.agg == agg }) {
			continue
		}
		id := agg.Subscribe(func(attribute.Attribute) { c.queueRefresh(h) })
		ae.links = append(ae.links, linkSub{agg: agg, id: id})
	}
}

// queueRefresh re-evaluates linked magnitudes, draining chained refreshes
// iteratively so dependency cycles terminate.
func (c *Container) queueRefresh(h Handle) {
	if !slices.Contains(c.refreshQueue, h) {
		c.refreshQueue = append(c.refreshQueue, h)
	}
	if c.refreshing {
		return
	}
	c.refreshing = true
	defer func() { c.refreshing = false }()

	for n := 0; ; n++ {
		if n >= maxLinkedRefreshes {
			slog.Warn("linked magnitude refresh did not settle",
				"owner", c.owner,
				"pending", len(c.refreshQueue))
			c.refreshQueue = nil
			return
		}
		if len(c.refreshQueue) == 0 {
			// Changed magnitudes may flip a Highest/Lowest winner.
			if c.RecalculateStacking() == 0 && len(c.refreshQueue) == 0 {
				return
			}
			continue
		}
		next := c.refreshQueue[0]
		c.refreshQueue = c.refreshQueue[1:]
		c.refreshContributions(next)
	}
}

func (c *Container) refreshContributions(h Handle) {
	ae := c.arena.get(h)
	if ae == nil || ae.periodic {
		return
	}
	ae.spec.CalculateModifierMagnitudes()

	def := ae.spec.Definition()
	owner := h.OwnerID()
	for _, attr := range def.Attributes() {
		agg, err := c.target.Aggregator(attr)
		if err != nil {
			continue
		}
		var mags []float64
		for i, m := range def.Modifiers {
			if m.Attribute == attr {
				mags = append(mags, ae.spec.ModifierMagnitude(i))
			}
		}
		agg.SetContributionMagnitudes(owner, mags)
	}
}
