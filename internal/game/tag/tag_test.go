package tag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag_MatchesTag(t *testing.T) {
	tests := []struct {
		name  string
		tag   Tag
		other Tag
		want  bool
	}{
		{name: "same", tag: "State.Stun", other: "State.Stun", want: true},
		{name: "parent", tag: "State.Debuff.Stun", other: "State.Debuff", want: true},
		{name: "root", tag: "State.Debuff.Stun", other: "State", want: true},
		{name: "child does not match parent query reversed", tag: "State", other: "State.Debuff", want: false},
		{name: "prefix but not segment", tag: "Statefull", other: "State", want: false},
		{name: "empty other", tag: "State", other: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tag.MatchesTag(tt.other))
		})
	}
}

func TestTag_WithParents(t *testing.T) {
	assert.Equal(t, []Tag{"A.B.C", "A.B", "A"}, Tag("A.B.C").WithParents())
	assert.Nil(t, Tag("").WithParents())
}

func TestContainer_AddDedup(t *testing.T) {
	c := NewContainer("A", "A", "", "B")
	assert.Equal(t, 2, c.Len())
	assert.True(t, c.HasTagExact("A"))
	assert.True(t, c.Remove("A"))
	assert.False(t, c.Remove("A"))
	assert.Equal(t, []Tag{"B"}, c.Tags())
}

func TestRequirements(t *testing.T) {
	owner := NewContainer("State.Buff.Haste", "Team.Red")

	tests := []struct {
		name string
		req  Requirements
		want bool
	}{
		{name: "empty", req: Requirements{}, want: true},
		{name: "require parent", req: Requirements{Require: NewContainer("State.Buff")}, want: true},
		{name: "require missing", req: Requirements{Require: NewContainer("State.Debuff")}, want: false},
		{name: "ignore present", req: Requirements{Ignore: NewContainer("Team.Red")}, want: false},
		{
			name: "require and ignore",
			req:  Requirements{Require: NewContainer("Team"), Ignore: NewContainer("State.Dead")},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.RequirementsMet(owner))
		})
	}
}

func TestCountContainer_HierarchicalCounts(t *testing.T) {
	c := NewCountContainer()

	c.UpdateTagCount("State.Debuff.Stun", 1)
	c.UpdateTagCount("State.Debuff.Root", 1)

	assert.Equal(t, 2, c.Count("State.Debuff"))
	assert.Equal(t, 2, c.Count("State"))
	assert.Equal(t, 1, c.ExplicitCount("State.Debuff.Stun"))
	assert.False(t, c.HasTagExact("State.Debuff"))
	assert.True(t, c.HasTag("State.Debuff"))

	c.UpdateTagCount("State.Debuff.Stun", -1)
	assert.Equal(t, 1, c.Count("State"))
	assert.False(t, c.HasTag("State.Debuff.Stun"))
}

func TestCountContainer_NeverNegative(t *testing.T) {
	c := NewCountContainer()

	c.UpdateTagCount("A", 1)
	changed := c.UpdateTagCount("A", -3)

	assert.True(t, changed)
	assert.Equal(t, 0, c.Count("A"))

	changed = c.UpdateTagCount("A", -1)
	assert.False(t, changed)
	assert.Equal(t, 0, c.Count("A"))
	assert.True(t, c.ExplicitTags().IsEmpty())
}

func TestCountContainer_Listeners(t *testing.T) {
	c := NewCountContainer()

	var newOrRemoved []int
	var anyChange []int
	var anyTag []Tag

	c.RegisterTagEvent("A", NewOrRemoved, func(_ Tag, n int) { newOrRemoved = append(newOrRemoved, n) })
	c.RegisterTagEvent("A", AnyCountChange, func(_ Tag, n int) { anyChange = append(anyChange, n) })
	id := c.RegisterAnyTagEvent(NewOrRemoved, func(t Tag, _ int) { anyTag = append(anyTag, t) })

	c.UpdateTagCount("A.B", 1)
	c.UpdateTagCount("A.B", 1)
	c.UpdateTagCount("A.B", -2)

	assert.Equal(t, []int{1, 0}, newOrRemoved)
	assert.Equal(t, []int{1, 2, 0}, anyChange)
	assert.Equal(t, []Tag{"A.B", "A", "A.B", "A"}, anyTag)

	c.Unregister(id)
	c.UpdateTagCount("C", 1)
	assert.Len(t, anyTag, 4)
}

func TestCountContainer_UnregisterDuringNotify(t *testing.T) {
	c := NewCountContainer()

	calls := 0
	var id ListenerID
	id = c.RegisterTagEvent("A", AnyCountChange, func(Tag, int) {
		calls++
		c.Unregister(id)
	})

	c.UpdateTagCount("A", 1)
	c.UpdateTagCount("A", 1)
	require.Equal(t, 1, calls)
}

func TestCountContainer_UpdateTags(t *testing.T) {
	c := NewCountContainer()
	granted := NewContainer("Buff.Haste", "Buff.Shield")

	c.UpdateTags(granted, 1)
	c.UpdateTags(granted, 1)
	assert.Equal(t, 4, c.Count("Buff"))

	c.UpdateTags(granted, -1)
	assert.Equal(t, 2, c.Count("Buff"))
	assert.Equal(t, NewContainer("Buff.Haste", "Buff.Shield"), c.ExplicitTags())
}
