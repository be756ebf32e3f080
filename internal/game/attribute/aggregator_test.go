package attribute

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine_EvaluationOrder(t *testing.T) {
	double := func(v float64) float64 { return v * 2 }

	tests := []struct {
		name string
		base float64
		mods []Contribution
		want float64
	}{
		{name: "base only", base: 50, want: 50},
		{
			name: "add then multiply then divide",
			base: 10,
			mods: []Contribution{
				{Op: OpMultiply, Magnitude: 3},
				{Op: OpAdd, Magnitude: 5},
				{Op: OpDivide, Magnitude: 5},
			},
			want: 9, // ((10+5)*3)/5
		},
		{
			name: "divide by zero ignored",
			base: 10,
			mods: []Contribution{{Op: OpDivide, Magnitude: 0}},
			want: 10,
		},
		{
			name: "last override wins",
			base: 10,
			mods: []Contribution{
				{Op: OpOverride, Magnitude: 1},
				{Op: OpAdd, Magnitude: 100},
				{Op: OpOverride, Magnitude: 7},
			},
			want: 7,
		},
		{
			name: "callback after override",
			base: 10,
			mods: []Contribution{
				{Op: OpCallback, Callback: double},
				{Op: OpOverride, Magnitude: 4},
			},
			want: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Combine(tt.base, tt.mods), 1e-9)
		})
	}
}

func TestAggregator_LazyRecompute(t *testing.T) {
	agg := NewAggregator("Speed", 100)
	assert.Equal(t, 100.0, agg.Evaluate())
	assert.False(t, agg.IsDirty())

	agg.AddContribution(Contribution{Op: OpMultiply, Magnitude: 2, Owner: 1})
	assert.True(t, agg.IsDirty())
	assert.Equal(t, 200.0, agg.Evaluate())
	assert.False(t, agg.IsDirty())

	assert.Equal(t, 1, agg.RemoveContributionsBy(1))
	assert.Equal(t, 0, agg.RemoveContributionsBy(1))
	assert.Equal(t, 100.0, agg.Evaluate())
}

func TestAggregator_SetBaseKeepsContributions(t *testing.T) {
	agg := NewAggregator("Armor", 0)
	agg.AddContribution(Contribution{Op: OpAdd, Magnitude: 5, Owner: 3})

	agg.SetBase(20)
	assert.Equal(t, 25.0, agg.Evaluate())
	assert.Equal(t, 20.0, agg.Base())
}

func TestAggregator_ExecuteOnBase(t *testing.T) {
	agg := NewAggregator("Health", 50)
	agg.AddContribution(Contribution{Op: OpMultiply, Magnitude: 2, Owner: 1})

	agg.ExecuteOnBase(OpAdd, 10, nil)
	assert.Equal(t, 60.0, agg.Base())
	assert.Equal(t, 120.0, agg.Evaluate())

	agg.ExecuteOnBase(OpDivide, 0, nil)
	assert.Equal(t, 60.0, agg.Base())
}

func TestAggregator_Observers(t *testing.T) {
	agg := NewAggregator("Mana", 10)

	var seen []Attribute
	id := agg.Subscribe(func(a Attribute) { seen = append(seen, a) })

	agg.AddContribution(Contribution{Op: OpAdd, Magnitude: 1, Owner: 1})
	agg.SetBase(10) // unchanged, no notification
	agg.SetBase(11)
	assert.Equal(t, []Attribute{"Mana", "Mana"}, seen)

	agg.Unsubscribe(id)
	agg.RemoveContributionsBy(1)
	assert.Len(t, seen, 2)
}

// Random add/remove sequences must always evaluate to the combination of
// exactly the contributions still present.
func TestAggregator_NoLeakedContributions(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	agg := NewAggregator("A", 3)

	live := map[OwnerID][]Contribution{}
	ops := []Op{OpAdd, OpMultiply, OpDivide}

	for step := range 500 {
		owner := OwnerID(rng.IntN(8) + 1)
		if _, ok := live[owner]; ok && rng.IntN(2) == 0 {
			agg.RemoveContributionsBy(owner)
			delete(live, owner)
		} else {
			c := Contribution{Op: ops[rng.IntN(len(ops))], Magnitude: float64(rng.IntN(5)), Owner: owner}
			agg.AddContribution(c)
			live[owner] = append(live[owner], c)
		}

		var expected []Contribution
		for _, c := range agg.Contributions() {
			_, ok := live[c.Owner]
			require.True(t, ok, "step %d: contribution from removed owner %d", step, c.Owner)
			expected = append(expected, c)
		}
		count := 0
		for _, cs := range live {
			count += len(cs)
		}
		require.Len(t, expected, count, "step %d", step)
		require.InDelta(t, Combine(3, expected), agg.Evaluate(), 1e-9, "step %d", step)
	}
}

func TestSet_GetAndSet(t *testing.T) {
	s := NewSetFromTable("Vitals", map[Attribute]float64{"Health": 50, "Mana": 20})

	v, err := s.GetNumericAttribute("Health")
	require.NoError(t, err)
	assert.Equal(t, 50.0, v)
	assert.Equal(t, []Attribute{"Health", "Mana"}, s.Attributes())

	require.NoError(t, s.SetNumericAttribute("Mana", 5))
	v, err = s.GetNumericAttribute("Mana")
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	_, err = s.GetNumericAttribute("Speed")
	assert.True(t, errors.Is(err, ErrMissingAttributeSet))
	assert.True(t, errors.Is(s.SetNumericAttribute("Speed", 1), ErrMissingAttributeSet))
}

func TestSet_SnapshotRestore(t *testing.T) {
	s := NewSet("Combat", "Armor", "Damage")
	require.NoError(t, s.SetNumericAttribute("Armor", 12))

	snap := s.Snapshot()
	assert.Equal(t, map[Attribute]float64{"Armor": 12, "Damage": 0}, snap)

	other := NewSet("Combat", "Armor", "Damage")
	unknown := other.Restore(map[Attribute]float64{"Armor": 12, "Bogus": 1})
	assert.Equal(t, []Attribute{"Bogus"}, unknown)

	v, err := other.GetBaseValue("Armor")
	require.NoError(t, err)
	assert.Equal(t, 12.0, v)
}

func TestCapture_Policies(t *testing.T) {
	tests := []struct {
		name       string
		policy     CopyPolicy
		dir        Direction
		wantLinked bool
	}{
		{name: "default outgoing snapshots", policy: CopyDefault, dir: Outgoing, wantLinked: false},
		{name: "default incoming links", policy: CopyDefault, dir: Incoming, wantLinked: true},
		{name: "always snapshot", policy: CopyAlwaysSnapshot, dir: Incoming, wantLinked: false},
		{name: "always link", policy: CopyAlwaysLink, dir: Outgoing, wantLinked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator("Power", 10)
			c := Capture(agg, tt.policy, tt.dir)
			assert.Equal(t, tt.wantLinked, c.IsLinked())

			agg.SetBase(30)
			if tt.wantLinked {
				assert.Equal(t, 30.0, c.Value())
			} else {
				assert.Equal(t, 10.0, c.Value())
			}
		})
	}
}

func TestAggregator_SetContributionMagnitudesKeepsOrder(t *testing.T) {
	agg := NewAggregator("Damage", 0)
	agg.AddContribution(Contribution{Op: OpOverride, Magnitude: 10, Owner: 1})
	agg.AddContribution(Contribution{Op: OpOverride, Magnitude: 20, Owner: 2})
	require.Equal(t, 20.0, agg.Evaluate())

	assert.True(t, agg.SetContributionMagnitudes(1, []float64{30}))
	assert.Equal(t, 20.0, agg.Evaluate(), "owner 2 was applied last and still wins")

	assert.False(t, agg.SetContributionMagnitudes(1, []float64{30}))
	assert.True(t, agg.SetContributionMagnitudes(2, []float64{5}))
	assert.Equal(t, 5.0, agg.Evaluate())
}
