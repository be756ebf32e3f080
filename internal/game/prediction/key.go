package prediction

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrKeyNotPredicting is returned when pending work is attached to a key that
// was never minted or has already been caught up.
var ErrKeyNotPredicting = errors.New("prediction key is not predicting")

// Key correlates a speculative action on a non-authoritative instance with the
// authority's later confirmation. The zero Key means "not predicted".
type Key struct {
	ID int32
}

// IsValid reports whether the key was minted.
func (k Key) IsValid() bool {
	return k.ID > 0
}

func (k Key) String() string {
	return fmt.Sprintf("pk:%d", k.ID)
}

// Pending is one speculative action waiting for catch-up.
type Pending struct {
	Label   string // for logs
	Digest  Digest // expected authoritative outcome
	Confirm func() // authority agreed; may be nil
	Reject  func() // authority disagreed; unwinds the side effects
}

type pendingEntry struct {
	key Key
	Pending
}

// Accepted maps a key ID to the outcome digests the authority accepted for it.
// A digest listed twice confirms two pending actions.
type Accepted map[int32][]Digest

// Ledger mints keys and tracks pending speculative actions on one
// non-authoritative instance. Single-threaded: driven from the owning tick.
type Ledger struct {
	last     int32
	caughtUp int32
	pending  []pendingEntry
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// NewKey mints the next key, superseding the previous one.
func (l *Ledger) NewKey() Key {
	l.last++
	return Key{ID: l.last}
}

// Current returns the most recently minted key.
func (l *Ledger) Current() Key {
	return Key{ID: l.last}
}

// IsValidForMorePrediction reports whether k is the newest minted key and
// the authority has not caught up to it yet.
func (l *Ledger) IsValidForMorePrediction(k Key) bool {
	return k.IsValid() && k.ID == l.last && k.ID > l.caughtUp
}

// CaughtUpTo returns the highest key processed by CatchUp.
func (l *Ledger) CaughtUpTo() Key {
	return Key{ID: l.caughtUp}
}

// AddPending attaches a speculative action to k.
func (l *Ledger) AddPending(k Key, p Pending) error {
	if !k.IsValid() || k.ID > l.last || k.ID <= l.caughtUp {
		return fmt.Errorf("adding pending %q to %s: %w", p.Label, k, ErrKeyNotPredicting)
	}
	l.pending = append(l.pending, pendingEntry{key: k, Pending: p})
	return nil
}

// PendingCount returns the number of actions awaiting catch-up.
func (l *Ledger) PendingCount() int {
	return len(l.pending)
}

// CatchUpResult summarises one CatchUp call.
type CatchUpResult struct {
	Confirmed int
	Rejected  int
}

// CatchUp resolves every pending action at or below latest. An action is
// confirmed when its digest is among the accepted digests for its key,
// otherwise it is rejected and unwound. Calling CatchUp again with the same
// or a lower key does nothing.
func (l *Ledger) CatchUp(latest Key, accepted Accepted) CatchUpResult {
	var res CatchUpResult
	if latest.ID <= l.caughtUp {
		return res
	}
	l.caughtUp = latest.ID

	// Each accepted digest confirms at most one pending action.
	remaining := make(map[int32][]Digest, len(accepted))
	for id, ds := range accepted {
		remaining[id] = append([]Digest(nil), ds...)
	}

	kept := l.pending[:0]
	var due []pendingEntry
	for _, p := range l.pending {
		if p.key.ID <= latest.ID {
			due = append(due, p)
		} else {
			kept = append(kept, p)
		}
	}
	l.pending = kept

	for _, p := range due {
		if takeDigest(remaining, p.key.ID, p.Digest) {
			res.Confirmed++
			if p.Confirm != nil {
				p.Confirm()
			}
			continue
		}
		res.Rejected++
		slog.Debug("prediction rejected", "key", p.key, "action", p.Label)
		if p.Reject != nil {
			p.Reject()
		}
	}
	return res
}

func takeDigest(remaining map[int32][]Digest, id int32, d Digest) bool {
	ds := remaining[id]
	for i := range ds {
		if ds[i] == d {
			remaining[id] = append(ds[:i], ds[i+1:]...)
			return true
		}
	}
	return false
}

// Journal is the authority-side record of accepted predicted outcomes,
// replicated to the predicting instance alongside the latest processed key.
type Journal struct {
	latest   int32
	accepted Accepted
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{accepted: make(Accepted)}
}

// Observe records that the authority processed k, accepted or not.
func (j *Journal) Observe(k Key) {
	if k.ID > j.latest {
		j.latest = k.ID
	}
}

// Accept records an accepted outcome for k.
func (j *Journal) Accept(k Key, d Digest) {
	if !k.IsValid() {
		return
	}
	j.Observe(k)
	j.accepted[k.ID] = append(j.accepted[k.ID], d)
}

// Latest returns the highest key the authority processed.
func (j *Journal) Latest() Key {
	return Key{ID: j.latest}
}

// Outcomes returns a copy of the accepted digests.
func (j *Journal) Outcomes() Accepted {
	out := make(Accepted, len(j.accepted))
	for id, ds := range j.accepted {
		out[id] = append([]Digest(nil), ds...)
	}
	return out
}

// Forget drops outcomes at or below k once the predicting side caught up.
func (j *Journal) Forget(k Key) {
	for id := range j.accepted {
		if id <= k.ID {
			delete(j.accepted, id)
		}
	}
}
