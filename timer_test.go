package aml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerFiresOnceAndAutoStops(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	calls := 0
	tm := NewTimer(time.Millisecond, func(t *Timer) { calls++ })
	assert.NoError(t, tm.Start(l))
	tm.Unref()

	time.Sleep(5 * time.Millisecond)
	l.Dispatch()
	l.Dispatch()

	assert.Equal(t, 1, calls)
	assert.False(t, tm.IsStarted())
}

func TestTimerZeroDurationFiresNextDispatch(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	calls := 0
	tm := NewTimer(0, func(t *Timer) { calls++ })
	assert.NoError(t, tm.Start(l))
	tm.Unref()

	l.Dispatch()
	assert.Equal(t, 1, calls)
}

func TestTickerRearmsAfterEachFire(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	calls := 0
	tk, err := NewTicker(time.Millisecond, func(t *Ticker) { calls++ })
	assert.NoError(t, err)
	assert.NoError(t, tk.Start(l))
	tk.Unref()

	time.Sleep(5 * time.Millisecond)
	l.Dispatch()
	assert.Equal(t, 1, calls)
	assert.True(t, tk.IsStarted())

	time.Sleep(5 * time.Millisecond)
	l.Dispatch()
	assert.Equal(t, 2, calls)
}

func TestTickerZeroPeriodRejected(t *testing.T) {
	_, err := NewTicker(0, nil)
	assert.Error(t, err)
}

func TestTimerDoubleStartFails(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	tm := NewTimer(time.Hour, nil)
	assert.NoError(t, tm.Start(l))
	defer tm.Stop()

	err := tm.Start(l)
	assert.Error(t, err)
}

func TestTimerStopBeforeFireCancelsDispatch(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	calls := 0
	tm := NewTimer(time.Hour, func(t *Timer) { calls++ })
	assert.NoError(t, tm.Start(l))
	assert.NoError(t, tm.Stop())

	l.Dispatch()
	assert.Equal(t, 0, calls)
}
