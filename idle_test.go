package aml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdleRunsEveryDispatchPass(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	calls := 0
	i := NewIdle(func(idle *Idle) { calls++ })
	assert.NoError(t, i.Start(l))
	i.Unref()

	l.Dispatch()
	l.Dispatch()
	l.Dispatch()

	assert.Equal(t, 3, calls)
}

func TestIdleStopDuringOwnCallback(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	calls := 0
	var i *Idle
	i = NewIdle(func(idle *Idle) {
		calls++
		assert.NoError(t, i.Stop())
	})
	assert.NoError(t, i.Start(l))
	i.Unref()

	l.Dispatch()
	l.Dispatch()

	assert.Equal(t, 1, calls)
	assert.False(t, i.IsStarted())
}

func TestIdleDoubleStopIsBenign(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	i := NewIdle(nil)
	assert.NoError(t, i.Start(l))
	i.Unref()

	assert.NoError(t, i.Stop())
	assert.NoError(t, i.Stop())
}
