package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

func TestRealClock_ReturnsCurrentTime(t *testing.T) {
	clock := domain.RealClock{}

	before := time.Now()
	now := clock.Now()
	after := time.Now()

	assert.False(t, now.Before(before))
	assert.False(t, now.After(after))
}

func TestMockClock_AdvanceAndSet(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := domain.NewMockClock(fixed)
	assert.Equal(t, fixed, clock.Now())

	clock.Advance(time.Hour)
	assert.Equal(t, fixed.Add(time.Hour), clock.Now())

	later := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(later)
	assert.Equal(t, later, clock.Now())
}
