package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_PushAndPrune(t *testing.T) {
	base := time.Unix(1000, 0)
	l := newLedger(3)

	l.push(base)
	l.push(base.Add(10 * time.Millisecond))
	l.push(base.Add(20 * time.Millisecond))
	require.True(t, l.full())
	assert.Equal(t, base, l.oldest())

	// Entries at or before the cutoff go.
	assert.Equal(t, 2, l.prune(base.Add(10*time.Millisecond)))
	assert.Equal(t, 1, l.len())
	assert.Equal(t, base.Add(20*time.Millisecond), l.oldest())

	assert.Equal(t, 0, l.prune(base))
	assert.Equal(t, 1, l.len())
}

func TestLedger_WrapsAround(t *testing.T) {
	base := time.Unix(0, 0)
	l := newLedger(2)

	for i := 0; i < 10; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		l.prune(ts.Add(-2 * time.Second))
		require.False(t, l.full(), "iteration %d", i)
		l.push(ts)
		assert.Equal(t, ts, l.newest())
	}
	assert.Equal(t, 2, l.len())
	assert.Equal(t, base.Add(8*time.Second), l.oldest())
}

func TestLedger_KeepsOrderOnClockStep(t *testing.T) {
	base := time.Unix(0, 0)
	l := newLedger(3)

	l.push(base.Add(time.Second))
	l.push(base) // earlier than newest, clamped

	assert.Equal(t, base.Add(time.Second), l.oldest())
	assert.Equal(t, base.Add(time.Second), l.newest())
}

func TestLedger_PushFullPanics(t *testing.T) {
	l := newLedger(1)
	l.push(time.Unix(0, 0))
	assert.Panics(t, func() { l.push(time.Unix(1, 0)) })
}

func TestLedger_PruneEmpty(t *testing.T) {
	l := newLedger(2)
	assert.Equal(t, 0, l.prune(time.Now()))
	assert.Equal(t, 0, l.len())
}
