package xbreaker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsecutiveFailuresPolicy(t *testing.T) {
	t.Run("trips at threshold", func(t *testing.T) {
		p := NewConsecutiveFailures(3)
		assert.False(t, p.ReadyToTrip(Counts{ConsecutiveFailures: 2}))
		assert.True(t, p.ReadyToTrip(Counts{ConsecutiveFailures: 3}))
		assert.True(t, p.ReadyToTrip(Counts{ConsecutiveFailures: 4}))
	})

	t.Run("zero threshold falls back to default", func(t *testing.T) {
		p := NewConsecutiveFailures(0)
		assert.Equal(t, uint32(DefaultTripThreshold), p.Threshold())
	})
}

func TestFailureRatioPolicy(t *testing.T) {
	t.Run("requires minimum sample", func(t *testing.T) {
		p := NewFailureRatio(0.5, 10)
		assert.False(t, p.ReadyToTrip(Counts{Requests: 9, TotalFailures: 9}))
		assert.True(t, p.ReadyToTrip(Counts{Requests: 10, TotalFailures: 6}))
	})

	t.Run("ratio boundary", func(t *testing.T) {
		p := NewFailureRatio(0.5, 4)
		assert.True(t, p.ReadyToTrip(Counts{Requests: 4, TotalFailures: 2}))
		assert.False(t, p.ReadyToTrip(Counts{Requests: 4, TotalFailures: 1}))
	})

	t.Run("out of range ratio clamped", func(t *testing.T) {
		assert.InDelta(t, 1.0, NewFailureRatio(7.5, 1).Ratio(), 1e-9)
		assert.Zero(t, NewFailureRatio(-1, 1).Ratio())
	})
}

func TestNeverTripPolicy(t *testing.T) {
	p := NewNeverTrip()
	assert.False(t, p.ReadyToTrip(Counts{Requests: 1000, TotalFailures: 1000, ConsecutiveFailures: 1000}))
}

func TestAlwaysTripPolicy(t *testing.T) {
	p := NewAlwaysTrip()
	assert.False(t, p.ReadyToTrip(Counts{Requests: 5}))
	assert.True(t, p.ReadyToTrip(Counts{Requests: 5, TotalFailures: 1}))
}
