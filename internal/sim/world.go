// Package sim hosts a scripted effects simulation: authoritative ability
// systems for every actor, predicting client replicas for some of them, and
// an in-process loopback carrying replication between the two sides.
package sim

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/udisondev/gameplayfx/internal/data"
	"github.com/udisondev/gameplayfx/internal/game/abilitysystem"
	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/effect"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
	"github.com/udisondev/gameplayfx/internal/game/tag"
	"github.com/udisondev/gameplayfx/internal/game/timer"
)

var ErrUnknownActor = errors.New("unknown actor")

// Options configures a World.
type Options struct {
	Catalog      *data.Catalog
	Attributes   *data.AttributeTables
	Scenario     *data.Scenario
	TickInterval time.Duration
	LatencyTicks int
	Seed         uint64
	Logger       *slog.Logger
}

// Stats counts what happened during a run.
type Stats struct {
	Steps       int
	Applied     int
	Refused     int // designed non-applications
	Failed      int
	Predicted   int
	Confirmed   int
	Rejected    int
	CuesServer  int
	CuesClients int
}

// client is the predicting replica of one actor.
type client struct {
	comp   *abilitysystem.Component
	timers *timer.Manager
	cues   *LogConsumer
}

// World runs one scenario. It is not safe for concurrent use; a single
// goroutine drives Tick.
type World struct {
	opts   Options
	logger *slog.Logger

	timers *timer.Manager
	cues   *LogConsumer
	actors map[actor.ID]*abilitysystem.Component
	order  []actor.ID

	clients map[actor.ID]*client
	link    *Loopback
	last    map[actor.ID]prediction.Digest // fingerprint of the last update sent

	tick  int
	next  int
	stats Stats
}

// NewWorld builds the authority and client components for every scenario actor.
func NewWorld(opts Options) (*World, error) {
	if opts.Catalog == nil || opts.Attributes == nil || opts.Scenario == nil {
		return nil, errors.New("sim: catalog, attributes and scenario are required")
	}
	if opts.TickInterval <= 0 {
		return nil, fmt.Errorf("sim: tick interval must be positive, got %s", opts.TickInterval)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &World{
		opts:    opts,
		logger:  logger,
		timers:  timer.NewManager(),
		cues:    NewLogConsumer(logger, "server"),
		actors:  make(map[actor.ID]*abilitysystem.Component, len(opts.Scenario.Actors)),
		clients: make(map[actor.ID]*client),
		link:    NewLoopback(opts.LatencyTicks),
		last:    make(map[actor.ID]prediction.Digest),
	}

	for _, a := range opts.Scenario.Actors {
		id := actor.ID(a.ID)
		sets, err := opts.Attributes.NewSets(a.Archetype)
		if err != nil {
			return nil, fmt.Errorf("actor %s: %w", id, err)
		}
		w.actors[id] = abilitysystem.New(abilitysystem.Options{
			Owner:       id,
			Authority:   true,
			Sets:        sets,
			Timers:      w.timers,
			Consumer:    w.cues,
			Multicaster: forwarder{w: w},
			Definitions: opts.Catalog,
			Roller:      w.roller(id),
		})
		w.order = append(w.order, id)

		if !a.Predicted {
			continue
		}
		replicaSets, err := opts.Attributes.NewSets(a.Archetype)
		if err != nil {
			return nil, fmt.Errorf("actor %s replica: %w", id, err)
		}
		c := &client{
			timers: timer.NewManager(),
			cues:   NewLogConsumer(logger, "client:"+a.ID),
		}
		c.comp = abilitysystem.New(abilitysystem.Options{
			Owner:       id,
			Sets:        replicaSets,
			Timers:      c.timers,
			Consumer:    c.cues,
			Definitions: opts.Catalog,
			Roller:      w.roller(id),
		})
		w.clients[id] = c
	}
	return w, nil
}

// roller seeds a per-actor PCG so the authority and the replica of one actor
// draw the same sequence.
func (w *World) roller(id actor.ID) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(id))
	return rand.New(rand.NewPCG(w.opts.Seed, h.Sum64()))
}

// Actor returns the authoritative component of id.
func (w *World) Actor(id actor.ID) (*abilitysystem.Component, bool) {
	c, ok := w.actors[id]
	return c, ok
}

// Replica returns the predicting client component of id.
func (w *World) Replica(id actor.ID) (*abilitysystem.Component, bool) {
	c, ok := w.clients[id]
	if !ok {
		return nil, false
	}
	return c.comp, true
}

// Actors returns the actor ids in scenario order.
func (w *World) Actors() []actor.ID {
	return slices.Clone(w.order)
}

// ServerCues returns the authority's cue consumer.
func (w *World) ServerCues() *LogConsumer { return w.cues }

// ClientCues returns the cue consumer of id's replica.
func (w *World) ClientCues(id actor.ID) (*LogConsumer, bool) {
	c, ok := w.clients[id]
	if !ok {
		return nil, false
	}
	return c.cues, true
}

// Now returns the authority's simulation time.
func (w *World) Now() time.Duration { return w.timers.Now() }

// Ticks returns the number of ticks run.
func (w *World) Ticks() int { return w.tick }

// Stats returns the counters so far.
func (w *World) Stats() Stats {
	st := w.stats
	st.CuesServer = w.cues.Total()
	for _, c := range w.clients {
		st.CuesClients += c.cues.Total()
	}
	return st
}

// Done reports whether every step ran, all traffic was delivered and no
// timed effect is left.
func (w *World) Done() bool {
	if w.next < len(w.opts.Scenario.Steps) || w.link.InFlight() > 0 || w.timers.Pending() > 0 {
		return false
	}
	for _, c := range w.clients {
		if c.timers.Pending() > 0 {
			return false
		}
	}
	return true
}

// Tick runs one simulation step: authority inbound traffic, due scenario
// steps, client inbound traffic, outbound replication, then the clocks advance.
func (w *World) Tick() {
	for _, r := range w.link.Requests(w.tick) {
		w.apply(r.Source, r.Target, r.Effect, r.Level, r.SetByCaller, r.Key)
	}
	for _, a := range w.link.Acks(w.tick) {
		if comp, ok := w.actors[a.Owner]; ok {
			comp.AcknowledgeCatchUp(a.Key)
		}
	}

	now := w.timers.Now()
	steps := w.opts.Scenario.Steps
	for w.next < len(steps) && steps[w.next].At <= now {
		w.runStep(steps[w.next])
		w.next++
	}

	for _, u := range w.link.Updates(w.tick) {
		w.receive(u)
	}
	for _, m := range w.link.Cues(w.tick) {
		if c, ok := w.clients[m.Target]; ok {
			c.comp.HandleMulticastCue(m.Tag, m.Event, m.Params)
		}
	}

	w.replicate()

	w.tick++
	w.timers.Advance(w.opts.TickInterval)
	for _, id := range w.order {
		if c, ok := w.clients[id]; ok {
			c.timers.Advance(w.opts.TickInterval)
		}
	}
}

func (w *World) runStep(st data.Step) {
	w.stats.Steps++
	src, dst := actor.ID(st.SourceOrTarget()), actor.ID(st.Target)

	if len(st.RemoveTags) > 0 {
		tags := make([]tag.Tag, len(st.RemoveTags))
		for i, t := range st.RemoveTags {
			tags[i] = tag.Tag(t)
		}
		n := w.actors[dst].RemoveActiveEffectsWithTags(tag.NewContainer(tags...))
		w.logger.Info("effects removed by tag", "target", dst, "tags", st.RemoveTags, "removed", n)
		return
	}

	level := st.Level
	if level == 0 {
		level = 1
	}
	if st.Predict {
		if c, ok := w.clients[src]; ok && src == dst {
			w.predict(c, src, st.Apply, level, st.SetByCaller)
			return
		}
		w.logger.Warn("step cannot be predicted, applying on authority",
			"source", src,
			"target", dst,
			"effect", st.Apply)
	}
	w.apply(src, dst, st.Apply, level, st.SetByCaller, prediction.Key{})
}

// predict applies the effect speculatively on the replica and asks the
// authority to apply it under the same key.
func (w *World) predict(c *client, id actor.ID, name string, level float64, sbc map[string]float64) {
	key := c.comp.NewPredictionKey()
	s, err := c.comp.MakeOutgoingSpecByName(name, level)
	if err != nil {
		w.stats.Failed++
		w.logger.Error("predicted spec not created", "actor", id, "effect", name, "err", err)
		return
	}
	for k, v := range sbc {
		s.SetSetByCallerMagnitude(k, v)
	}
	res, err := c.comp.ApplyGameplayEffectSpecToSelf(s, key)
	switch {
	case err != nil:
		w.logger.Info("prediction not applied", "actor", id, "effect", name, "key", key, "reason", err)
	case res.Predicted:
		w.stats.Predicted++
		w.logger.Info("effect predicted", "actor", id, "effect", name, "key", key)
	}
	w.link.SendRequest(w.tick, ApplyRequest{
		Source:      id,
		Target:      id,
		Effect:      name,
		Level:       level,
		SetByCaller: sbc,
		Key:         key,
	})
}

// apply runs an application on the authority.
func (w *World) apply(src, dst actor.ID, name string, level float64, sbc map[string]float64, key prediction.Key) {
	source, ok := w.actors[src]
	if !ok {
		w.stats.Failed++
		w.logger.Error("apply from unknown actor", "source", src, "err", ErrUnknownActor)
		return
	}
	target, ok := w.actors[dst]
	if !ok {
		w.stats.Failed++
		w.logger.Error("apply to unknown actor", "target", dst, "err", ErrUnknownActor)
		return
	}

	s, err := source.MakeOutgoingSpecByName(name, level)
	if err != nil {
		w.stats.Failed++
		w.logger.Error("spec not created", "source", src, "effect", name, "err", err)
		return
	}
	for k, v := range sbc {
		s.SetSetByCallerMagnitude(k, v)
	}

	res, err := source.ApplyGameplayEffectSpecToTarget(s, target, key)
	switch {
	case errors.Is(err, abilitysystem.ErrTagRequirementNotMet),
		errors.Is(err, abilitysystem.ErrApplicationRolledOut),
		errors.Is(err, effect.ErrStackingRejected):
		w.stats.Refused++
		w.logger.Info("effect not applied", "source", src, "target", dst, "effect", name, "reason", err)
	case err != nil:
		w.stats.Failed++
		w.logger.Error("apply failed", "source", src, "target", dst, "effect", name, "err", err)
	default:
		w.stats.Applied++
		w.logger.Info("effect applied",
			"source", src,
			"target", dst,
			"effect", name,
			"level", level,
			"executed", res.Executed,
			"key", key,
			"at", w.timers.Now())
	}
}

// replicate sends the state of every predicted actor that changed since the
// last update.
func (w *World) replicate() {
	for _, id := range w.order {
		if _, ok := w.clients[id]; !ok {
			continue
		}
		comp := w.actors[id]
		latest, accepted := comp.PredictionOutcomes()
		u := StateUpdate{
			Owner:    id,
			Effects:  comp.ReplicatedEffects(),
			Latest:   latest,
			Accepted: accepted,
			Bases:    comp.BaseValues(),
		}
		fp := fingerprint(u)
		if prev, ok := w.last[id]; ok && prev == fp {
			continue
		}
		w.last[id] = fp
		w.link.SendUpdate(w.tick, u)
	}
}

// receive applies an update on the client: effects, then prediction
// catch-up, then base values.
func (w *World) receive(u StateUpdate) {
	c, ok := w.clients[u.Owner]
	if !ok {
		return
	}
	c.comp.OnReplicatedEffectsChanged(u.Effects)
	res := c.comp.ReplicatedPredictionKeyChanged(u.Latest, u.Accepted)
	c.comp.SetBaseValues(u.Bases)

	w.stats.Confirmed += res.Confirmed
	w.stats.Rejected += res.Rejected
	if res.Confirmed+res.Rejected > 0 {
		w.link.SendAck(w.tick, CatchUpAck{Owner: u.Owner, Key: u.Latest})
	}
}

// fingerprint digests the parts of an update a client reacts to. Elapsed
// time is left out; it only matters when an effect is first seen.
func fingerprint(u StateUpdate) prediction.Digest {
	d := prediction.NewDigester()
	for _, e := range u.Effects {
		d.Int(int64(e.ID)).String(e.Definition)
	}
	d.Int(int64(u.Latest.ID))
	for _, id := range slices.Sorted(maps.Keys(u.Accepted)) {
		d.Int(int64(id)).Int(int64(len(u.Accepted[id])))
	}
	for _, attr := range slices.Sorted(maps.Keys(u.Bases)) {
		d.String(string(attr)).Float(u.Bases[attr])
	}
	return d.Sum()
}

// ActorReport is the end state of one actor.
type ActorReport struct {
	ID         actor.ID
	Attributes map[attribute.Attribute]float64
	Effects    []string
}

// Report returns the authoritative current values and active effects of
// every actor in scenario order.
func (w *World) Report() []ActorReport {
	out := make([]ActorReport, 0, len(w.order))
	for _, id := range w.order {
		comp := w.actors[id]
		r := ActorReport{ID: id, Attributes: make(map[attribute.Attribute]float64)}
		for attr := range comp.BaseValues() {
			if v, err := comp.GetNumericAttribute(attr); err == nil {
				r.Attributes[attr] = v
			}
		}
		for _, ae := range comp.Effects().GetActiveEffects(effect.MatchAll()) {
			r.Effects = append(r.Effects, ae.Spec().Definition().Name)
		}
		out = append(out, r)
	}
	return out
}
