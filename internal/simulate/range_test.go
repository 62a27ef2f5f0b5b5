package simulate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSteps(t *testing.T) {
	got, err := SplitSteps(5, 2)
	require.NoError(t, err)
	assert.Equal(t, []StepRange{{From: 0, To: 1}, {From: 2, To: 3}, {From: 4, To: 4}}, got)
}

func TestSplitStepsSingleBatch(t *testing.T) {
	got, err := SplitSteps(3, 10)
	require.NoError(t, err)
	assert.Equal(t, []StepRange{{From: 0, To: 2}}, got)

	got, err = SplitSteps(0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSplitStepsInvalid(t *testing.T) {
	_, err := SplitSteps(10, 0)
	assert.Error(t, err)
	_, err = SplitSteps(-1, 1)
	assert.Error(t, err)
}
