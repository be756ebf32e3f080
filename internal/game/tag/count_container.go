package tag

import (
	"log/slog"
	"slices"
)

// EventType selects when a tag listener fires.
type EventType uint8

const (
	// NewOrRemoved fires when a tag's count goes 0 → >0 or >0 → 0.
	NewOrRemoved EventType = iota
	// AnyCountChange fires on every count change.
	AnyCountChange
)

// Listener receives the tag whose count changed and its new (hierarchical) count.
type Listener func(t Tag, newCount int)

// ListenerID identifies a registered listener for Unregister.
type ListenerID uint64

type listenerEntry struct {
	id    ListenerID
	event EventType
	fn    Listener
}

// CountContainer is a reference-counted tag set with change notifications.
//
// Each explicit grant of "A.B.C" also counts toward "A.B" and "A", so
// hierarchical queries are O(1). Counts never go below zero: an update that
// would do so is clamped and logged.
//
// Not safe for concurrent use; owned by one component and driven from its tick.
type CountContainer struct {
	counts      map[Tag]int
	explicit    map[Tag]int
	perTag      map[Tag][]listenerEntry
	anyTag      []listenerEntry
	nextID      ListenerID
	listenerTag map[ListenerID]Tag
}

// NewCountContainer creates an empty container.
func NewCountContainer() *CountContainer {
	return &CountContainer{
		counts:      make(map[Tag]int),
		explicit:    make(map[Tag]int),
		perTag:      make(map[Tag][]listenerEntry),
		listenerTag: make(map[ListenerID]Tag),
	}
}

// Count returns the hierarchical count of t (grants of t or any descendant).
func (c *CountContainer) Count(t Tag) int {
	return c.counts[t]
}

// ExplicitCount returns how many times t itself was granted.
func (c *CountContainer) ExplicitCount(t Tag) int {
	return c.explicit[t]
}

// HasTag reports whether t or one of its descendants is granted.
func (c *CountContainer) HasTag(t Tag) bool {
	return c.counts[t] > 0
}

// HasTagExact reports whether t itself is granted.
func (c *CountContainer) HasTagExact(t Tag) bool {
	return c.explicit[t] > 0
}

// ExplicitTags returns the currently granted tags in sorted order.
func (c *CountContainer) ExplicitTags() Container {
	tags := make([]Tag, 0, len(c.explicit))
	for t := range c.explicit {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return NewContainer(tags...)
}

// UpdateTagCount adds delta to t. Returns true if the explicit count changed.
func (c *CountContainer) UpdateTagCount(t Tag, delta int) bool {
	if !t.IsValid() || delta == 0 {
		return false
	}
	changes := c.apply(t, delta)
	c.notify(changes)
	return len(changes) > 0
}

// UpdateTags adds delta to every tag of tags, then notifies in tag order.
func (c *CountContainer) UpdateTags(tags Container, delta int) {
	if delta == 0 {
		return
	}
	var changes []countChange
	for _, t := range tags.tags {
		changes = append(changes, c.apply(t, delta)...)
	}
	c.notify(changes)
}

// RegisterTagEvent subscribes fn to changes of t.
func (c *CountContainer) RegisterTagEvent(t Tag, event EventType, fn Listener) ListenerID {
	c.nextID++
	id := c.nextID
	c.perTag[t] = append(c.perTag[t], listenerEntry{id: id, event: event, fn: fn})
	c.listenerTag[id] = t
	return id
}

// RegisterAnyTagEvent subscribes fn to changes of any tag.
func (c *CountContainer) RegisterAnyTagEvent(event EventType, fn Listener) ListenerID {
	c.nextID++
	id := c.nextID
	c.anyTag = append(c.anyTag, listenerEntry{id: id, event: event, fn: fn})
	return id
}

// Unregister removes a listener. Unknown IDs are ignored.
func (c *CountContainer) Unregister(id ListenerID) {
	if t, ok := c.listenerTag[id]; ok {
		delete(c.listenerTag, id)
		c.perTag[t] = slices.DeleteFunc(c.perTag[t], func(e listenerEntry) bool { return e.id == id })
		if len(c.perTag[t]) == 0 {
			delete(c.perTag, t)
		}
		return
	}
	c.anyTag = slices.DeleteFunc(c.anyTag, func(e listenerEntry) bool { return e.id == id })
}

type countChange struct {
	tag      Tag
	oldCount int
	newCount int
}

func (c *CountContainer) apply(t Tag, delta int) []countChange {
	if !t.IsValid() {
		return nil
	}
	old := c.explicit[t]
	next := old + delta
	if next < 0 {
		slog.Warn("tag count would go negative, clamping",
			"tag", t,
			"count", old,
			"delta", delta)
		next = 0
	}
	applied := next - old
	if applied == 0 {
		return nil
	}
	if next == 0 {
		delete(c.explicit, t)
	} else {
		c.explicit[t] = next
	}

	changes := make([]countChange, 0, 4)
	for _, p := range t.WithParents() {
		before := c.counts[p]
		after := before + applied
		if after <= 0 {
			delete(c.counts, p)
			after = 0
		} else {
			c.counts[p] = after
		}
		changes = append(changes, countChange{tag: p, oldCount: before, newCount: after})
	}
	return changes
}

func (c *CountContainer) notify(changes []countChange) {
	for _, ch := range changes {
		appeared := ch.oldCount == 0 && ch.newCount > 0
		vanished := ch.oldCount > 0 && ch.newCount == 0

		// Listeners may unregister while being called.
		for _, e := range slices.Clone(c.perTag[ch.tag]) {
			if e.event == AnyCountChange || appeared || vanished {
				e.fn(ch.tag, ch.newCount)
			}
		}
		for _, e := range slices.Clone(c.anyTag) {
			if e.event == AnyCountChange || appeared || vanished {
				e.fn(ch.tag, ch.newCount)
			}
		}
	}
}
