package sim

import (
	"log/slog"

	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/cue"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

// LogConsumer is the cosmetic layer of a headless host: it logs every cue at
// debug level and keeps them for inspection.
type LogConsumer struct {
	logger *slog.Logger
	side   string
	rec    cue.Recorder
}

// NewLogConsumer creates a consumer tagging its records with side.
func NewLogConsumer(logger *slog.Logger, side string) *LogConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogConsumer{logger: logger, side: side}
}

// HandleGameplayCue implements cue.Consumer.
func (l *LogConsumer) HandleGameplayCue(target actor.ID, t tag.Tag, event cue.Event, params cue.Parameters) {
	l.rec.HandleGameplayCue(target, t, event, params)
	l.logger.Debug("gameplay cue",
		"side", l.side,
		"target", target,
		"cue", t,
		"event", event,
		"effect", params.EffectName,
		"magnitude", params.RawMagnitude,
		"normalized", params.NormalizedMagnitude,
		"origin", params.Origin)
}

// Count returns how many times event fired for t.
func (l *LogConsumer) Count(t tag.Tag, event cue.Event) int {
	return l.rec.Count(t, event)
}

// Events returns the events recorded for t in order.
func (l *LogConsumer) Events(t tag.Tag) []cue.Event {
	return l.rec.Events(t)
}

// Total returns the number of cues handled.
func (l *LogConsumer) Total() int {
	return len(l.rec.Invocations)
}

// forwarder multicasts authority cues through the loopback to the client
// replica of the target, if there is one.
type forwarder struct {
	w *World
}

func (f forwarder) MulticastGameplayCue(target actor.ID, t tag.Tag, event cue.Event, params cue.Parameters) {
	if _, ok := f.w.clients[target]; !ok {
		return
	}
	f.w.link.SendCue(f.w.tick, CueMessage{Target: target, Tag: t, Event: event, Params: params})
}
