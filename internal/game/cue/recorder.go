package cue

import (
	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

// Invocation is one recorded cue call.
type Invocation struct {
	Target actor.ID
	Tag    tag.Tag
	Event  Event
	Params Parameters
}

// Recorder is a Consumer and Multicaster that keeps every invocation in order.
type Recorder struct {
	Invocations []Invocation
}

// HandleGameplayCue implements Consumer.
func (r *Recorder) HandleGameplayCue(target actor.ID, t tag.Tag, event Event, params Parameters) {
	r.Invocations = append(r.Invocations, Invocation{Target: target, Tag: t, Event: event, Params: params})
}

// MulticastGameplayCue implements Multicaster.
func (r *Recorder) MulticastGameplayCue(target actor.ID, t tag.Tag, event Event, params Parameters) {
	r.HandleGameplayCue(target, t, event, params)
}

// Count returns how many times event fired for t.
func (r *Recorder) Count(t tag.Tag, event Event) int {
	n := 0
	for _, inv := range r.Invocations {
		if inv.Tag == t && inv.Event == event {
			n++
		}
	}
	return n
}

// Events returns the ordered events recorded for t.
func (r *Recorder) Events(t tag.Tag) []Event {
	var out []Event
	for _, inv := range r.Invocations {
		if inv.Tag == t {
			out = append(out, inv.Event)
		}
	}
	return out
}

// Reset clears recorded invocations.
func (r *Recorder) Reset() {
	r.Invocations = nil
}
