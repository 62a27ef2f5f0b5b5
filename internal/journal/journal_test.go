package journal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func set(j *Journal, p *int, v int) {
	prev := *p
	*p = v
	j.Record(func() { *p = prev })
}

func TestAtomicRevertsOnError(t *testing.T) {
	j := New()
	x := 1
	errBoom := errors.New("boom")

	err := j.Atomic(func() error {
		set(j, &x, 2)
		set(j, &x, 3)
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, x)
}

func TestAtomicNestedRevertKeepsOuter(t *testing.T) {
	j := New()
	x, y := 0, 0

	err := j.Atomic(func() error {
		set(j, &x, 1)
		inner := j.Atomic(func() error {
			set(j, &y, 5)
			return errors.New("inner")
		})
		require.Error(t, inner)
		assert.Equal(t, 0, y)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, x)
	assert.Equal(t, 0, y)
}

func TestAtomicOuterRevertUndoesCommittedInner(t *testing.T) {
	j := New()
	x := 0

	err := j.Atomic(func() error {
		require.NoError(t, j.Atomic(func() error {
			set(j, &x, 7)
			return nil
		}))
		return errors.New("outer")
	})
	require.Error(t, err)
	assert.Equal(t, 0, x)
}

func TestAtomicRevertsOnPanic(t *testing.T) {
	j := New()
	x := 3

	assert.Panics(t, func() {
		_ = j.Atomic(func() error {
			set(j, &x, 4)
			panic("unexpected")
		})
	})
	assert.Equal(t, 3, x)
	assert.Equal(t, 0, j.Depth())
}

func TestOnCommitRunsOnlyAfterOutermostSuccess(t *testing.T) {
	j := New()
	var fired []string

	err := j.Atomic(func() error {
		j.OnCommit(func() { fired = append(fired, "outer") })
		_ = j.Atomic(func() error {
			j.OnCommit(func() { fired = append(fired, "dropped") })
			return errors.New("no")
		})
		require.NoError(t, j.Atomic(func() error {
			j.OnCommit(func() { fired = append(fired, "inner") })
			return nil
		}))
		assert.Empty(t, fired)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, fired)

	fired = nil
	_ = j.Atomic(func() error {
		j.OnCommit(func() { fired = append(fired, "never") })
		return errors.New("fail")
	})
	assert.Empty(t, fired)
}

func TestOnCommitOutsideAtomicRunsImmediately(t *testing.T) {
	j := New()
	ran := false
	j.OnCommit(func() { ran = true })
	assert.True(t, ran)
}

func TestRecordOutsideSnapshotIsFinal(t *testing.T) {
	j := New()
	x := 1
	set(j, &x, 2)

	snap := j.Snapshot()
	set(j, &x, 3)
	j.RevertToSnapshot(snap)
	assert.Equal(t, 2, x)
}
