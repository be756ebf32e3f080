package prediction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digestOf(s string) Digest {
	return NewDigester().String(s).Sum()
}

func TestLedger_KeysSupersede(t *testing.T) {
	l := NewLedger()

	k1 := l.NewKey()
	assert.True(t, l.IsValidForMorePrediction(k1))

	k2 := l.NewKey()
	assert.Greater(t, k2.ID, k1.ID)
	assert.False(t, l.IsValidForMorePrediction(k1))
	assert.True(t, l.IsValidForMorePrediction(k2))
	assert.False(t, l.IsValidForMorePrediction(Key{}))

	l.CatchUp(k2, nil)
	assert.False(t, l.IsValidForMorePrediction(k2))
}

func TestLedger_AddPendingRejectsStaleKeys(t *testing.T) {
	l := NewLedger()

	err := l.AddPending(Key{}, Pending{Label: "zero"})
	assert.True(t, errors.Is(err, ErrKeyNotPredicting))

	err = l.AddPending(Key{ID: 5}, Pending{Label: "unminted"})
	assert.True(t, errors.Is(err, ErrKeyNotPredicting))

	k := l.NewKey()
	require.NoError(t, l.AddPending(k, Pending{Label: "ok"}))
	l.CatchUp(k, nil)

	err = l.AddPending(k, Pending{Label: "late"})
	assert.True(t, errors.Is(err, ErrKeyNotPredicting))
}

func TestLedger_CatchUpConfirmsOrRejects(t *testing.T) {
	l := NewLedger()

	var confirmed, rejected []string
	add := func(k Key, label string) {
		require.NoError(t, l.AddPending(k, Pending{
			Label:   label,
			Digest:  digestOf(label),
			Confirm: func() { confirmed = append(confirmed, label) },
			Reject:  func() { rejected = append(rejected, label) },
		}))
	}

	k1 := l.NewKey()
	add(k1, "haste")
	k2 := l.NewKey()
	add(k2, "heal")
	k3 := l.NewKey()
	add(k3, "shield")

	res := l.CatchUp(k2, Accepted{k1.ID: {digestOf("haste")}, k2.ID: {digestOf("something else")}})

	assert.Equal(t, CatchUpResult{Confirmed: 1, Rejected: 1}, res)
	assert.Equal(t, []string{"haste"}, confirmed)
	assert.Equal(t, []string{"heal"}, rejected)
	assert.Equal(t, 1, l.PendingCount())
	assert.Equal(t, k2, l.CaughtUpTo())
}

func TestLedger_CatchUpIdempotent(t *testing.T) {
	l := NewLedger()

	rejects := 0
	k1 := l.NewKey()
	require.NoError(t, l.AddPending(k1, Pending{Reject: func() { rejects++ }}))
	k2 := l.NewKey()
	require.NoError(t, l.AddPending(k2, Pending{Reject: func() { rejects++ }}))

	l.CatchUp(k2, nil)
	require.Equal(t, 2, rejects)

	assert.Equal(t, CatchUpResult{}, l.CatchUp(k2, nil))
	assert.Equal(t, CatchUpResult{}, l.CatchUp(k1, nil))
	assert.Equal(t, 2, rejects)
}

func TestLedger_AcceptedDigestConfirmsOnce(t *testing.T) {
	l := NewLedger()
	k := l.NewKey()
	d := digestOf("dup")

	confirms, rejects := 0, 0
	for range 2 {
		require.NoError(t, l.AddPending(k, Pending{
			Digest:  d,
			Confirm: func() { confirms++ },
			Reject:  func() { rejects++ },
		}))
	}

	l.CatchUp(k, Accepted{k.ID: {d}})
	assert.Equal(t, 1, confirms)
	assert.Equal(t, 1, rejects)
}

func TestJournal(t *testing.T) {
	j := NewJournal()

	j.Observe(Key{ID: 3})
	j.Accept(Key{ID: 2}, digestOf("a"))
	j.Accept(Key{}, digestOf("ignored"))

	assert.Equal(t, Key{ID: 3}, j.Latest())
	assert.Equal(t, Accepted{2: {digestOf("a")}}, j.Outcomes())

	j.Forget(Key{ID: 2})
	assert.Empty(t, j.Outcomes())
}

func TestDigester_FieldBoundaries(t *testing.T) {
	a := NewDigester().String("ab").String("c").Sum()
	b := NewDigester().String("a").String("bc").Sum()
	assert.NotEqual(t, a, b)

	c := NewDigester().Float(1.5).Int(2).Sum()
	assert.Equal(t, c, NewDigester().Float(1.5).Int(2).Sum())
}
