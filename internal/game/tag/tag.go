package tag

import (
	"slices"
	"strings"
)

// Tag is a dot-separated hierarchical gameplay label, e.g. "State.Debuff.Stun".
// A tag matches itself and every ancestor ("State.Debuff", "State").
type Tag string

// IsValid reports whether the tag is non-empty.
func (t Tag) IsValid() bool {
	return t != ""
}

// Parent returns the direct parent tag, or "" for a root tag.
func (t Tag) Parent() Tag {
	i := strings.LastIndexByte(string(t), '.')
	if i < 0 {
		return ""
	}
	return t[:i]
}

// MatchesTag reports whether t equals other or descends from it.
func (t Tag) MatchesTag(other Tag) bool {
	if !other.IsValid() {
		return false
	}
	if t == other {
		return true
	}
	return strings.HasPrefix(string(t), string(other)+".")
}

// WithParents returns t followed by its ancestors, nearest first.
func (t Tag) WithParents() []Tag {
	if !t.IsValid() {
		return nil
	}
	out := []Tag{t}
	for p := t.Parent(); p.IsValid(); p = p.Parent() {
		out = append(out, p)
	}
	return out
}

// Matcher is anything that can answer hierarchical tag queries.
// Container and CountContainer both implement it.
type Matcher interface {
	HasTag(t Tag) bool
}

// Container is a small ordered set of tags. The zero value is empty and ready to use.
type Container struct {
	tags []Tag
}

// NewContainer builds a container from the given tags, dropping duplicates and empty tags.
func NewContainer(tags ...Tag) Container {
	var c Container
	for _, t := range tags {
		c.Add(t)
	}
	return c
}

// FromStrings builds a container from raw tag names (data tables use strings).
func FromStrings(names []string) Container {
	var c Container
	for _, n := range names {
		c.Add(Tag(strings.TrimSpace(n)))
	}
	return c
}

// Add inserts t if it is valid and not already present.
func (c *Container) Add(t Tag) {
	if !t.IsValid() || slices.Contains(c.tags, t) {
		return
	}
	c.tags = append(c.tags, t)
}

// Remove deletes t; returns false when it was not present.
func (c *Container) Remove(t Tag) bool {
	i := slices.Index(c.tags, t)
	if i < 0 {
		return false
	}
	c.tags = slices.Delete(c.tags, i, i+1)
	return true
}

// AppendTags adds every tag of other.
func (c *Container) AppendTags(other Container) {
	for _, t := range other.tags {
		c.Add(t)
	}
}

// Tags returns a copy of the tags in insertion order.
func (c Container) Tags() []Tag {
	return slices.Clone(c.tags)
}

// Len returns the number of explicit tags.
func (c Container) Len() int {
	return len(c.tags)
}

// IsEmpty reports whether the container has no tags.
func (c Container) IsEmpty() bool {
	return len(c.tags) == 0
}

// HasTag reports whether any explicit tag matches t (hierarchically).
// "State.Debuff.Stun" in the container satisfies HasTag("State.Debuff").
func (c Container) HasTag(t Tag) bool {
	for _, own := range c.tags {
		if own.MatchesTag(t) {
			return true
		}
	}
	return false
}

// HasTagExact reports whether t itself is present.
func (c Container) HasTagExact(t Tag) bool {
	return slices.Contains(c.tags, t)
}

// HasAny reports whether m has at least one tag of c.
func (c Container) HasAny(m Matcher) bool {
	for _, t := range c.tags {
		if m.HasTag(t) {
			return true
		}
	}
	return false
}

// HasAll reports whether m has every tag of c. An empty container is always satisfied.
func (c Container) HasAll(m Matcher) bool {
	for _, t := range c.tags {
		if !m.HasTag(t) {
			return false
		}
	}
	return true
}

func (c Container) String() string {
	parts := make([]string, len(c.tags))
	for i, t := range c.tags {
		parts[i] = string(t)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Requirements gates on the tags an owner currently has.
type Requirements struct {
	Require Container // all must be present
	Ignore  Container // none may be present
}

// IsEmpty reports whether the requirements never reject anything.
func (r Requirements) IsEmpty() bool {
	return r.Require.IsEmpty() && r.Ignore.IsEmpty()
}

// RequirementsMet checks the owner's tags against Require and Ignore.
func (r Requirements) RequirementsMet(owner Matcher) bool {
	if !r.Require.HasAll(owner) {
		return false
	}
	return !r.Ignore.HasAny(owner)
}
