package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dklatt/gatehouse/pkg/auth"
)

func TestTimingDelay_WaitFrom_OnFailure(t *testing.T) {
	config := auth.TimingConfig{
		BaseDelayMs:    100,
		RandomDelayMs:  50,
		DelayOnSuccess: false,
	}

	timing := auth.NewTimingDelay(config)
	startTime := time.Now()

	timing.WaitFrom(startTime, false)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestTimingDelay_WaitFrom_OnSuccess_NoDelay(t *testing.T) {
	config := auth.TimingConfig{
		BaseDelayMs:    100,
		RandomDelayMs:  50,
		DelayOnSuccess: false,
	}

	timing := auth.NewTimingDelay(config)
	startTime := time.Now()

	timing.WaitFrom(startTime, true)

	assert.Less(t, time.Since(startTime), 50*time.Millisecond)
}

func TestTimingDelay_WaitFrom_OnSuccess_WithDelay(t *testing.T) {
	config := auth.TimingConfig{
		BaseDelayMs:    100,
		RandomDelayMs:  0,
		DelayOnSuccess: true,
	}

	timing := auth.NewTimingDelay(config)
	startTime := time.Now()

	timing.WaitFrom(startTime, true)

	assert.GreaterOrEqual(t, time.Since(startTime), 100*time.Millisecond)
}

func TestTimingDelay_WaitFrom_CountsElapsedTime(t *testing.T) {
	config := auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 0,
	}

	timing := auth.NewTimingDelay(config)

	// Pretend 60ms of work already happened; only the remainder is slept.
	startTime := time.Now().Add(-60 * time.Millisecond)
	before := time.Now()
	timing.WaitFrom(startTime, false)
	slept := time.Since(before)

	assert.Less(t, slept, 90*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(startTime), 100*time.Millisecond)
}

func TestTimingDelay_WaitFrom_NoSleepWhenBudgetSpent(t *testing.T) {
	config := auth.TimingConfig{
		BaseDelayMs:   50,
		RandomDelayMs: 0,
	}

	timing := auth.NewTimingDelay(config)

	startTime := time.Now().Add(-200 * time.Millisecond)
	before := time.Now()
	timing.WaitFrom(startTime, false)

	assert.Less(t, time.Since(before), 20*time.Millisecond)
}

func TestTimingDelay_ZeroConfig(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{})

	startTime := time.Now()
	timing.WaitFrom(startTime, false)
	assert.Less(t, time.Since(startTime), 20*time.Millisecond)
}
