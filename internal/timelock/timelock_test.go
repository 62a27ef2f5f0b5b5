package timelock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProposalInvisibleUntilCooldown(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	v := New[uint16](100)

	v.Propose(200, start, 300*time.Second)
	assert.Equal(t, uint16(100), v.Get(start))
	assert.Equal(t, uint16(100), v.Get(start.Add(299*time.Second)))
	assert.Equal(t, uint16(200), v.Get(start.Add(300*time.Second)))

	pending, at, ok := v.Pending(start.Add(time.Second))
	assert.True(t, ok)
	assert.Equal(t, uint16(200), pending)
	assert.Equal(t, start.Add(300*time.Second), at)

	_, _, ok = v.Pending(start.Add(300 * time.Second))
	assert.False(t, ok)
}

func TestReproposeRestartsCooldown(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	v := New(1)

	v.Propose(2, start, 300*time.Second)
	v.Propose(3, start.Add(200*time.Second), 300*time.Second)
	assert.Equal(t, 1, v.Get(start.Add(300*time.Second)))
	assert.Equal(t, 3, v.Get(start.Add(500*time.Second)))
}

func TestProposeAfterEffectivePromotes(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	v := New(1)

	v.Propose(2, start, 300*time.Second)
	later := start.Add(400 * time.Second)
	v.Propose(5, later, 300*time.Second)
	assert.Equal(t, 2, v.Get(later))
	assert.Equal(t, 5, v.Get(later.Add(300*time.Second)))
}

func TestSetIsImmediate(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	v := New("a")
	v.Propose("b", start, time.Minute)
	v.Set("c")
	assert.Equal(t, "c", v.Get(start.Add(time.Hour)))
}

func TestLatestSeesPendingValue(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	v := New(10)
	assert.Equal(t, 10, v.Latest())
	v.Propose(20, start, time.Minute)
	assert.Equal(t, 20, v.Latest())
	assert.Equal(t, 10, v.Get(start))
}
