package student

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitionsAreMonotonic(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusStarted, true},
		{StatusPending, StatusCompleted, true},
		{StatusStarted, StatusCompleted, true},
		{StatusStarted, StatusPending, false},
		{StatusCompleted, StatusStarted, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusCompleted, false},
		{StatusPending, Status("cancelled"), false},
	}
	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestStatusPredecessors(t *testing.T) {
	assert.Equal(t, []string{"pending", "started"}, StatusCompleted.predecessors())
	assert.Equal(t, []string{"pending"}, StatusStarted.predecessors())
	assert.Empty(t, StatusPending.predecessors())
}

func TestGenerateAccessCodeRange(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := GenerateAccessCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}
