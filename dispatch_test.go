package aml

import (
	"testing"
	"time"

	"github.com/any1/aml/backend"
	"github.com/stretchr/testify/assert"
)

func TestDispatchRunsTimersInEmitOrderThenIdle(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	var order []string

	idle := NewIdle(func(i *Idle) { order = append(order, "idle") })
	assert.NoError(t, idle.Start(l))
	idle.Unref()

	h := NewFdHandler(3, backend.Read, func(fh *FdHandler) { order = append(order, "fd") })
	assert.NoError(t, h.Start(l))
	h.Unref()

	tm := NewTimer(time.Millisecond, func(t *Timer) { order = append(order, "timer") })
	assert.NoError(t, tm.Start(l))
	tm.Unref()

	time.Sleep(5 * time.Millisecond)
	l.EmitFD(3, backend.Read)
	l.Dispatch()

	// The fd was emitted before Dispatch; the timer-drain phase appends
	// the expired timer to the queue behind it, and idles run last.
	assert.Equal(t, []string{"fd", "timer", "idle"}, order)
}

func TestDispatchQueueIsFIFOAndIncludesSourcesEmittedMidPass(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	var order []string

	second := NewFdHandler(5, backend.Read, func(fh *FdHandler) {
		order = append(order, "second")
	})
	assert.NoError(t, second.Start(l))
	second.Unref()

	first := NewFdHandler(4, backend.Read, func(fh *FdHandler) {
		order = append(order, "first")
		// emitted from within the first callback; must still run in
		// this same dispatch pass, after "first" (FIFO).
		l.EmitFD(5, backend.Read)
	})
	assert.NoError(t, first.Start(l))
	first.Unref()

	l.EmitFD(4, backend.Read)
	l.Dispatch()

	assert.Equal(t, []string{"first", "second"}, order)
}
