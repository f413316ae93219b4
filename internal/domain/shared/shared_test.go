package shared_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dispatchcore/fleetengine/internal/domain/shared"
)

func TestMockClock_AdvanceMovesTimeForward(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := shared.NewMockClock(start)

	clock.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), clock.Now())
}

func TestMockClock_SetTime(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	target := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	clock.SetTime(target)
	assert.Equal(t, target, clock.Now())
}

func TestMockClock_SleepAdvancesWithoutBlocking(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := shared.NewMockClock(start)

	clock.Sleep(time.Minute)
	assert.Equal(t, start.Add(time.Minute), clock.Now())
}

func TestRealClock_NowReturnsUTC(t *testing.T) {
	clock := shared.NewRealClock()
	assert.Equal(t, time.UTC, clock.Now().Location())
}

func TestNotFoundError_CarriesEntityKindAndID(t *testing.T) {
	err := shared.NewNotFoundError("vehicle", "veh-1")
	assert.Equal(t, shared.KindNotFound, err.Kind)
	assert.Contains(t, err.Error(), "veh-1")
}

func TestUnavailableError_IncludesCauseWhenPresent(t *testing.T) {
	err := shared.NewUnavailableError("route pickup leg", assert.AnError)
	assert.Contains(t, err.Error(), assert.AnError.Error())
}

func TestUnavailableError_OmitsCauseWhenNil(t *testing.T) {
	err := shared.NewUnavailableError("route pickup leg", nil)
	assert.NotContains(t, err.Error(), "<nil>")
}

func TestValidationError_FormatsFieldAndMessage(t *testing.T) {
	err := shared.NewValidationError("weight_tons", "must be positive")
	assert.Equal(t, "weight_tons: must be positive", err.Error())
}
