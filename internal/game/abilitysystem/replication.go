package abilitysystem

import (
	"log/slog"

	"github.com/udisondev/gameplayfx/internal/game/cue"
	"github.com/udisondev/gameplayfx/internal/game/effect"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

// ReplicatedEffects returns the authoritative active effect list.
func (c *Component) ReplicatedEffects() []effect.Replicated {
	return c.effects.Replicate()
}

// PredictionOutcomes returns the latest processed key and the accepted
// outcomes the predicting instance needs for catch-up. Zero on a non-authority.
func (c *Component) PredictionOutcomes() (prediction.Key, prediction.Accepted) {
	if c.journal == nil {
		return prediction.Key{}, nil
	}
	return c.journal.Latest(), c.journal.Outcomes()
}

// AcknowledgeCatchUp drops journal entries the predicting side has processed.
func (c *Component) AcknowledgeCatchUp(k prediction.Key) {
	if c.journal != nil {
		c.journal.Forget(k)
	}
}

// OnReplicatedEffectsChanged reconciles the local container with the
// authority's list. New entries are added, entries gone from the list are
// removed, and predicted effects are swapped for their authoritative copy
// without firing their cues a second time. The first list after joining is
// treated as late replication: only WhileActive fires for it.
func (c *Component) OnReplicatedEffectsChanged(list []effect.Replicated) {
	if c.authority {
		slog.Warn("replicated effects on authority ignored", "owner", c.owner)
		return
	}
	lateJoin := !c.synced
	c.synced = true
	c.lastList = list
	c.lastListAt = c.timers.Now()

	present := make(map[uint64]struct{}, len(list))
	for _, r := range list {
		present[r.ID] = struct{}{}
		if _, ok := c.effects.FindByReplicatedID(r.ID); ok {
			continue
		}
		if _, ok := c.seen[r.ID]; ok {
			// Expired locally ahead of the authority.
			continue
		}
		c.seen[r.ID] = struct{}{}
		c.addReplicated(r, lateJoin)
	}

	stale := c.effects.GetActiveEffects(effect.Query{Custom: func(ae *effect.ActiveEffect) bool {
		if ae.Origin() != cue.OriginReplicated {
			return false
		}
		_, ok := present[ae.ReplicatedID()]
		return !ok
	}})
	for _, ae := range stale {
		c.effects.RemoveActiveEffect(ae.Handle())
	}
	for id := range c.seen {
		if _, ok := present[id]; !ok {
			delete(c.seen, id)
		}
	}
}

func (c *Component) addReplicated(r effect.Replicated, lateJoin bool) {
	def, err := c.definition(r.Definition)
	if err != nil {
		slog.Error("replicated effect skipped", "owner", c.owner, "effect", r.Definition, "err", err)
		return
	}
	s, err := effect.SpecFromReplicated(def, r)
	if err != nil {
		slog.Error("replicated effect skipped", "owner", c.owner, "effect", r.Definition, "err", err)
		return
	}

	opts := effect.AddOptions{
		Origin:       cue.OriginReplicated,
		LateJoin:     lateJoin,
		Elapsed:      r.Elapsed,
		ReplicatedID: r.ID,
	}
	pred, swapping := c.effects.FindPredicted(r.PredictionKey, r.Definition)
	if swapping {
		opts.CuesActive = pred.CuesActive()
		opts.Supersede = pred.Handle()
	}

	if _, err := c.effects.CreateNewActiveEffectWith(s, opts); err != nil {
		if swapping && c.effects.RemoveActiveEffect(opts.Supersede) {
			slog.Warn("predicted effect dropped: authority copy not added",
				"owner", c.owner,
				"effect", r.Definition,
				"key", r.PredictionKey,
				"err", err)
			return
		}
		slog.Debug("replicated effect not added", "owner", c.owner, "effect", r.Definition, "err", err)
		return
	}
	if swapping {
		slog.Debug("predicted effect replaced by authority copy",
			"owner", c.owner,
			"effect", r.Definition,
			"key", r.PredictionKey)
	}
}

// restoreDisplaced re-adds replicated effects that a discarded prediction
// removed, if the last replicated list still carries them. They count as
// late joins: only WhileActive fires again.
func (c *Component) restoreDisplaced(ids []uint64) {
	if len(ids) == 0 {
		return
	}
	elapsed := c.timers.Now() - c.lastListAt
	for _, id := range ids {
		if _, ok := c.effects.FindByReplicatedID(id); ok {
			continue
		}
		for _, r := range c.lastList {
			if r.ID != id {
				continue
			}
			r.Elapsed += elapsed
			c.seen[id] = struct{}{}
			c.addReplicated(r, true)
			slog.Debug("displaced effect restored",
				"owner", c.owner,
				"effect", r.Definition,
				"id", id)
			break
		}
	}
}

// ReplicatedPredictionKeyChanged catches up every pending prediction at or
// below latest. Repeated or older keys are ignored.
func (c *Component) ReplicatedPredictionKeyChanged(latest prediction.Key, accepted prediction.Accepted) prediction.CatchUpResult {
	if c.ledger == nil {
		return prediction.CatchUpResult{}
	}
	res := c.ledger.CatchUp(latest, accepted)
	if res.Confirmed > 0 || res.Rejected > 0 {
		slog.Debug("prediction caught up",
			"owner", c.owner,
			"key", latest,
			"confirmed", res.Confirmed,
			"rejected", res.Rejected)
	}
	return res
}

// HandleMulticastCue receives a cue multicast by the authority. Only Executed
// events travel this way; lifecycle events come with the replicated effect
// list. Events this instance already predicted are skipped.
func (c *Component) HandleMulticastCue(t tag.Tag, event cue.Event, params cue.Parameters) {
	if c.authority || event != cue.Executed {
		return
	}
	if k := params.PredictionKey; k.IsValid() && c.ledger != nil && k.ID <= c.ledger.Current().ID {
		return
	}
	params.Origin = cue.OriginReplicated
	c.cues.InvokeGameplayCueEvent(t, event, params)
}
