package attribute

import (
	"slices"
)

// Op defines how a modifier contribution combines with the base value.
type Op uint8

const (
	OpAdd      Op = iota // base + m
	OpMultiply           // × m
	OpDivide             // ÷ m, zero magnitude is ignored
	OpOverride           // replaces the combined value, last applied wins
	OpCallback           // custom function applied after everything else
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "Add"
	case OpMultiply:
		return "Multiply"
	case OpDivide:
		return "Divide"
	case OpOverride:
		return "Override"
	case OpCallback:
		return "Callback"
	default:
		return "Unknown"
	}
}

// Callback is a custom contribution applied to the combined value.
type Callback func(current float64) float64

// OwnerID identifies what added a contribution (an active effect handle key).
// Zero means no owner.
type OwnerID uint64

// Contribution is one live modifier entry in an aggregator.
type Contribution struct {
	Op        Op
	Magnitude float64
	Callback  Callback // only for OpCallback
	Owner     OwnerID
}

// Observer is notified synchronously whenever the aggregator is dirtied.
type Observer func(attr Attribute)

// ObserverID identifies a subscription for Unsubscribe.
type ObserverID uint64

type observerEntry struct {
	id ObserverID
	fn Observer
}

// Aggregator caches the combined value of one attribute from its base value
// and the ordered list of live contributions.
//
// Recombination is lazy: any add/remove/base change marks the aggregator
// dirty and the next Evaluate recomputes.
type Aggregator struct {
	attr      Attribute
	base      float64
	mods      []Contribution
	cached    float64
	dirty     bool
	observers []observerEntry
	nextObsID ObserverID
}

// NewAggregator creates an aggregator with the given base and no contributions.
func NewAggregator(attr Attribute, base float64) *Aggregator {
	return &Aggregator{attr: attr, base: base, dirty: true}
}

// Attribute returns the attribute this aggregator backs.
func (a *Aggregator) Attribute() Attribute {
	return a.attr
}

// Base returns the base value.
func (a *Aggregator) Base() float64 {
	return a.base
}

// SetBase overwrites the base value; live contributions still apply on top.
func (a *Aggregator) SetBase(v float64) {
	if a.base == v {
		return
	}
	a.base = v
	a.markDirty()
}

// ExecuteOnBase applies a single op permanently to the base value.
// Used for instant and periodic executions.
func (a *Aggregator) ExecuteOnBase(op Op, magnitude float64, cb Callback) {
	a.SetBase(Combine(a.base, []Contribution{{Op: op, Magnitude: magnitude, Callback: cb}}))
}

// AddContribution appends a live contribution.
func (a *Aggregator) AddContribution(c Contribution) {
	a.mods = append(a.mods, c)
	a.markDirty()
}

// RemoveContributionsBy strips every contribution owned by owner.
// Returns how many were removed.
func (a *Aggregator) RemoveContributionsBy(owner OwnerID) int {
	before := len(a.mods)
	a.mods = slices.DeleteFunc(a.mods, func(c Contribution) bool { return c.Owner == owner })
	removed := before - len(a.mods)
	if removed > 0 {
		a.markDirty()
	}
	return removed
}

// SetContributionMagnitudes rewrites, in place and in order, the magnitudes of
// the contributions owned by owner. Application order is preserved so
// "last override wins" is unaffected. Returns true if anything changed.
func (a *Aggregator) SetContributionMagnitudes(owner OwnerID, mags []float64) bool {
	changed := false
	k := 0
	for i := range a.mods {
		if a.mods[i].Owner != owner {
			continue
		}
		if k >= len(mags) {
			break
		}
		if a.mods[i].Magnitude != mags[k] {
			a.mods[i].Magnitude = mags[k]
			changed = true
		}
		k++
	}
	if changed {
		a.markDirty()
	}
	return changed
}

// Contributions returns a copy of the live contributions in application order.
func (a *Aggregator) Contributions() []Contribution {
	return slices.Clone(a.mods)
}

// HasContributionsFrom reports whether owner has at least one live contribution.
func (a *Aggregator) HasContributionsFrom(owner OwnerID) bool {
	return slices.ContainsFunc(a.mods, func(c Contribution) bool { return c.Owner == owner })
}

// IsDirty reports whether the cached value is stale.
func (a *Aggregator) IsDirty() bool {
	return a.dirty
}

// Evaluate returns the combined value, recomputing it if dirty.
func (a *Aggregator) Evaluate() float64 {
	if a.dirty {
		a.cached = Combine(a.base, a.mods)
		a.dirty = false
	}
	return a.cached
}

// Subscribe registers an observer for dirty notifications.
func (a *Aggregator) Subscribe(fn Observer) ObserverID {
	a.nextObsID++
	a.observers = append(a.observers, observerEntry{id: a.nextObsID, fn: fn})
	return a.nextObsID
}

// Unsubscribe removes an observer. Unknown IDs are ignored.
func (a *Aggregator) Unsubscribe(id ObserverID) {
	a.observers = slices.DeleteFunc(a.observers, func(e observerEntry) bool { return e.id == id })
}

func (a *Aggregator) markDirty() {
	a.dirty = true
	for _, e := range slices.Clone(a.observers) {
		e.fn(a.attr)
	}
}

// Combine folds contributions over base in the fixed evaluation order:
//
//	((base + ΣAdd) × ΠMultiply) ÷ ΠDivide → last Override → Callbacks in order
//
// Division by a zero magnitude is skipped.
func Combine(base float64, mods []Contribution) float64 {
	add := 0.0
	mul := 1.0
	div := 1.0
	var override *float64

	for i := range mods {
		m := &mods[i]
		switch m.Op {
		case OpAdd:
			add += m.Magnitude
		case OpMultiply:
			mul *= m.Magnitude
		case OpDivide:
			if m.Magnitude != 0 {
				div *= m.Magnitude
			}
		case OpOverride:
			override = &m.Magnitude
		}
	}

	result := ((base + add) * mul) / div
	if override != nil {
		result = *override
	}

	for i := range mods {
		if mods[i].Op == OpCallback && mods[i].Callback != nil {
			result = mods[i].Callback(result)
		}
	}
	return result
}
