package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelWrapping(t *testing.T) {
	err := Wrap(ErrNotFound, "trigger failed")
	assert.True(t, Is(err, ErrNotFound))
	assert.True(t, IsNotFoundError(err))
	assert.False(t, IsAlreadyRunningError(err))
	assert.Contains(t, err.Error(), "trigger failed")
}

func TestAlreadyRunning(t *testing.T) {
	err := Wrapf(ErrAlreadyRunning, "job %q", "usage_metrics")
	require.Error(t, err)
	assert.True(t, IsAlreadyRunningError(err))
	assert.False(t, IsNotFoundError(err))
	assert.Contains(t, err.Error(), "usage_metrics")
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("no job named %q", "bogus")
	assert.True(t, IsNotFoundError(err))
	assert.Contains(t, err.Error(), "bogus")
}

func TestInvalidSchedule(t *testing.T) {
	err := Wrap(ErrInvalidSchedule, "parse \"* * *\"")
	assert.True(t, IsInvalidScheduleError(err))
	assert.False(t, IsInvalidScheduleError(nil))
}

func TestDetailsSurviveWrapping(t *testing.T) {
	err := New("execution failed")
	err = WithDetail(err, "Job: audit_retention")
	err = Wrap(err, "tick")

	details := GetAllDetails(err)
	require.Len(t, details, 1)
	assert.Equal(t, "Job: audit_retention", details[0])
}
