package timer

import (
	"container/heap"
	"time"
)

// Handle identifies a scheduled callback. Zero is never issued.
type Handle uint64

// IsValid reports whether h was issued by a scheduler.
func (h Handle) IsValid() bool {
	return h != 0
}

// Scheduler is the timer surface the gameplay core needs.
// Callbacks run on the goroutine that drives the scheduler, never concurrently.
type Scheduler interface {
	Now() time.Duration
	ScheduleOnce(delay time.Duration, fn func()) Handle
	Cancel(h Handle) bool
	TimeRemaining(h Handle) (time.Duration, bool)
}

type entry struct {
	handle Handle
	due    time.Duration
	seq    uint64
	fn     func()
	index  int
}

type queue []*entry

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}
func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Manager is a simulation-time timer wheel advanced explicitly by the owning tick.
//
// Callbacks due at the same instant run in scheduling order. While a callback
// runs, Now reports that callback's due time.
type Manager struct {
	now    time.Duration
	seq    uint64
	nextID Handle
	q      queue
	live   map[Handle]*entry
}

// NewManager creates a manager at simulation time zero.
func NewManager() *Manager {
	return &Manager{live: make(map[Handle]*entry)}
}

// Now returns the current simulation time.
func (m *Manager) Now() time.Duration {
	return m.now
}

// ScheduleOnce runs fn once after delay. Negative delays are treated as zero.
func (m *Manager) ScheduleOnce(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}
	m.nextID++
	m.seq++
	e := &entry{handle: m.nextID, due: m.now + delay, seq: m.seq, fn: fn}
	heap.Push(&m.q, e)
	m.live[e.handle] = e
	return e.handle
}

// Cancel removes a pending callback. Returns false if it already ran or is unknown.
func (m *Manager) Cancel(h Handle) bool {
	e, ok := m.live[h]
	if !ok {
		return false
	}
	delete(m.live, h)
	heap.Remove(&m.q, e.index)
	return true
}

// TimeRemaining returns how long until h fires.
func (m *Manager) TimeRemaining(h Handle) (time.Duration, bool) {
	e, ok := m.live[h]
	if !ok {
		return 0, false
	}
	return e.due - m.now, true
}

// Pending returns the number of scheduled callbacks.
func (m *Manager) Pending() int {
	return len(m.live)
}

// Advance moves time forward by dt, running every callback that becomes due.
// Returns the number of callbacks run.
func (m *Manager) Advance(dt time.Duration) int {
	if dt < 0 {
		dt = 0
	}
	return m.AdvanceTo(m.now + dt)
}

// AdvanceTo moves time forward to target. Callbacks scheduled by other
// callbacks run in the same call if they fall due by target.
func (m *Manager) AdvanceTo(target time.Duration) int {
	ran := 0
	for len(m.q) > 0 && m.q[0].due <= target {
		e := heap.Pop(&m.q).(*entry)
		delete(m.live, e.handle)
		if e.due > m.now {
			m.now = e.due
		}
		e.fn()
		ran++
	}
	if target > m.now {
		m.now = target
	}
	return ran
}
