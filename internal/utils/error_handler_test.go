package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler_MergesSameSource(t *testing.T) {
	eh := NewErrorHandler(10)
	eh.HandleError("ShardsStateCollector", errors.New("boom"), ErrorTypeSnapshot, SeverityMedium)
	eh.HandleError("ShardsStateCollector", errors.New("boom again"), ErrorTypeSnapshot, SeverityMedium)
	eh.HandleError("ShardsStateCollector", errors.New("bad record"), ErrorTypeSerialization, SeverityHigh)
	eh.HandleError("ShardsStateCollector", nil, ErrorTypeSnapshot, SeverityMedium)

	assert.Equal(t, 3, eh.GetErrorCount())

	snap := eh.GetErrorsByType(ErrorTypeSnapshot)
	require.Len(t, snap, 1)
	assert.Equal(t, 2, snap[0].Count)
	assert.Equal(t, "boom again", snap[0].Message)

	eh.ClearErrors()
	assert.Equal(t, 0, eh.GetErrorCount())
	assert.Empty(t, eh.GetErrors())
}

func TestErrorHandler_EvictsOldest(t *testing.T) {
	eh := NewErrorHandler(2)
	clock := time.Unix(0, 0)
	eh.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	eh.HandleError("a", errors.New("1"), ErrorTypeQueue, SeverityLow)
	eh.HandleError("b", errors.New("2"), ErrorTypeQueue, SeverityLow)
	eh.HandleError("c", errors.New("3"), ErrorTypeQueue, SeverityLow)

	got := eh.GetErrors()
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Source)
	assert.Equal(t, "b", got[1].Source)
}

func TestSafeCall(t *testing.T) {
	err := SafeCall(func() error { panic("nil map") })
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "nil map", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	sentinel := errors.New("plain")
	assert.Same(t, sentinel, SafeCall(func() error { return sentinel }))
	assert.NoError(t, SafeCall(func() error { return nil }))
}
