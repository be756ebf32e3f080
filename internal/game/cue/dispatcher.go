package cue

import (
	"log/slog"

	"github.com/udisondev/gameplayfx/internal/game/actor"
	"github.com/udisondev/gameplayfx/internal/game/prediction"
	"github.com/udisondev/gameplayfx/internal/game/tag"
)

// Event is a cue lifecycle event.
type Event uint8

const (
	OnActive    Event = iota // effect newly applied
	WhileActive              // effect is active (also sent on late replication)
	Executed                 // instant application or periodic tick
	Removed                  // effect left the container
)

func (e Event) String() string {
	switch e {
	case OnActive:
		return "OnActive"
	case WhileActive:
		return "WhileActive"
	case Executed:
		return "Executed"
	case Removed:
		return "Removed"
	default:
		return "Unknown"
	}
}

// Origin says how the event came to exist on this instance.
type Origin uint8

const (
	OriginLocal      Origin = iota // produced by this instance's own gameplay logic
	OriginPredicted                // produced speculatively under a prediction key
	OriginReplicated               // produced while applying replicated state
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginPredicted:
		return "predicted"
	case OriginReplicated:
		return "replicated"
	default:
		return "unknown"
	}
}

// Parameters is the ephemeral payload handed to the cosmetic layer once.
type Parameters struct {
	RawMagnitude        float64
	NormalizedMagnitude float64
	Level               float64
	MatchedTag          tag.Tag
	OriginalTag         tag.Tag
	Instigator          actor.ID
	Causer              actor.ID
	SourceTags          tag.Container
	EffectName          string
	EffectContext       any // the effect package's Context; opaque to the cosmetic layer
	PredictionKey       prediction.Key
	Origin              Origin
}

// Consumer is the external cosmetic layer. It gets no return channel into gameplay.
type Consumer interface {
	HandleGameplayCue(target actor.ID, t tag.Tag, event Event, params Parameters)
}

// Multicaster forwards authoritative cue invocations to remote instances.
type Multicaster interface {
	MulticastGameplayCue(target actor.ID, t tag.Tag, event Event, params Parameters)
}

// KeyValidator answers whether a prediction key may still predict.
type KeyValidator interface {
	IsValidForMorePrediction(k prediction.Key) bool
}

// Dispatcher turns effect lifecycle events into cue consumer calls for one target.
// It never touches gameplay state.
type Dispatcher struct {
	target      actor.ID
	authority   bool
	consumer    Consumer
	multicaster Multicaster
	keys        KeyValidator
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMulticaster sets the outbound multicaster used on the authority.
func WithMulticaster(m Multicaster) Option {
	return func(d *Dispatcher) { d.multicaster = m }
}

// WithKeyValidator sets the prediction key validator used off-authority.
func WithKeyValidator(v KeyValidator) Option {
	return func(d *Dispatcher) { d.keys = v }
}

// NewDispatcher creates a dispatcher for target. consumer may be nil on a
// headless instance.
func NewDispatcher(target actor.ID, authority bool, consumer Consumer, opts ...Option) *Dispatcher {
	d := &Dispatcher{target: target, authority: authority, consumer: consumer}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// IsAuthority reports whether the dispatcher runs on the authoritative instance.
func (d *Dispatcher) IsAuthority() bool {
	return d.authority
}

// InvokeGameplayCueEvent delivers one cue event. Returns true when it reached
// the local consumer (or would have, for a headless instance).
//
// Authority: local consumer plus multicast. Non-authority: replicated events
// pass through; predicted events need a key still valid for prediction,
// except Removed which always pairs an earlier OnActive.
func (d *Dispatcher) InvokeGameplayCueEvent(t tag.Tag, event Event, params Parameters) bool {
	if !t.IsValid() {
		return false
	}
	if !params.MatchedTag.IsValid() {
		params.MatchedTag = t
	}
	if !params.OriginalTag.IsValid() {
		params.OriginalTag = t
	}

	if d.authority {
		d.deliver(t, event, params)
		if d.multicaster != nil {
			d.multicaster.MulticastGameplayCue(d.target, t, event, params)
		}
		return true
	}

	switch params.Origin {
	case OriginReplicated:
		d.deliver(t, event, params)
		return true
	case OriginPredicted:
		if event == Removed || (d.keys != nil && d.keys.IsValidForMorePrediction(params.PredictionKey)) {
			d.deliver(t, event, params)
			return true
		}
	}

	slog.Debug("cue dropped off-authority",
		"target", d.target,
		"cue", t,
		"event", event,
		"key", params.PredictionKey)
	return false
}

func (d *Dispatcher) deliver(t tag.Tag, event Event, params Parameters) {
	if d.consumer != nil {
		d.consumer.HandleGameplayCue(d.target, t, event, params)
	}
}

// Normalize maps level into [0,1] over [min,max]. A degenerate range yields 1.
func Normalize(level, min, max float64) float64 {
	if max <= min {
		return 1
	}
	v := (level - min) / (max - min)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
