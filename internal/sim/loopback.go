package sim

import (
	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/attribute"
	"github.com/udisondev/gameplayfx/internal/game/cue"
	"github.com/udisondev/gameplayfx/internal/game/effect"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

// StateUpdate is the authority's replicated state of one actor.
type StateUpdate struct {
	Owner    actor.ID
	Effects  []effect.Replicated
	Latest   prediction.Key
	Accepted prediction.Accepted
	Bases    map[attribute.Attribute]float64
}

// CueMessage is one multicast cue invocation.
type CueMessage struct {
	Target actor.ID
	Tag    tag.Tag
	Event  cue.Event
	Params cue.Parameters
}

// ApplyRequest asks the authority to apply an effect the client predicted.
type ApplyRequest struct {
	Source      actor.ID
	Target      actor.ID
	Effect      string
	Level       float64
	SetByCaller map[string]float64
	Key         prediction.Key
}

// CatchUpAck tells the authority the client caught up to Key.
type CatchUpAck struct {
	Owner actor.ID
	Key   prediction.Key
}

type timed[T any] struct {
	due int
	msg T
}

// pipe is a FIFO whose messages become due a fixed number of ticks after
// they were sent.
type pipe[T any] struct {
	items []timed[T]
}

func (p *pipe[T]) push(due int, msg T) {
	p.items = append(p.items, timed[T]{due: due, msg: msg})
}

// take removes and returns every message due at or before tick.
func (p *pipe[T]) take(tick int) []T {
	n := 0
	for n < len(p.items) && p.items[n].due <= tick {
		n++
	}
	if n == 0 {
		return nil
	}
	out := make([]T, n)
	for i := range n {
		out[i] = p.items[i].msg
	}
	p.items = append(p.items[:0], p.items[n:]...)
	return out
}

func (p *pipe[T]) len() int {
	return len(p.items)
}

// Loopback carries replication traffic in-process between the authority and
// the predicting clients with a fixed latency in ticks. A message sent during
// a tick is never delivered within that same tick.
type Loopback struct {
	latency int

	updates  pipe[StateUpdate]
	cues     pipe[CueMessage]
	requests pipe[ApplyRequest]
	acks     pipe[CatchUpAck]
}

// NewLoopback creates a loopback delaying every message by latency ticks.
func NewLoopback(latency int) *Loopback {
	return &Loopback{latency: max(latency, 1)}
}

// Latency returns the delivery delay in ticks.
func (l *Loopback) Latency() int {
	return l.latency
}

// SendUpdate queues u for the client at tick now.
func (l *Loopback) SendUpdate(now int, u StateUpdate) { l.updates.push(now+l.latency, u) }

// SendCue queues m for the client at tick now.
func (l *Loopback) SendCue(now int, m CueMessage) { l.cues.push(now+l.latency, m) }

// SendRequest queues r for the authority at tick now.
func (l *Loopback) SendRequest(now int, r ApplyRequest) { l.requests.push(now+l.latency, r) }

// SendAck queues a for the authority at tick now.
func (l *Loopback) SendAck(now int, a CatchUpAck) { l.acks.push(now+l.latency, a) }

// Requests returns the apply requests due at tick.
func (l *Loopback) Requests(tick int) []ApplyRequest { return l.requests.take(tick) }

// Acks returns the catch-up acknowledgements due at tick.
func (l *Loopback) Acks(tick int) []CatchUpAck { return l.acks.take(tick) }

// Updates returns the state updates due at tick.
func (l *Loopback) Updates(tick int) []StateUpdate { return l.updates.take(tick) }

// Cues returns the multicast cues due at tick.
func (l *Loopback) Cues(tick int) []CueMessage { return l.cues.take(tick) }

// InFlight returns the number of undelivered messages in both directions.
func (l *Loopback) InFlight() int {
	return l.updates.len() + l.cues.len() + l.requests.len() + l.acks.len()
}
