package aml

import (
	"testing"

	"github.com/any1/aml/backend"
	"github.com/stretchr/testify/assert"
)

func TestFdHandlerStartRegistersWithBackend(t *testing.T) {
	fb := newFakeBackend()
	l := NewWithBackend(fb)
	defer l.Close()

	h := NewFdHandler(7, backend.Read, nil)
	assert.NoError(t, h.Start(l))
	defer h.Stop()

	assert.Equal(t, []int{7}, fb.addFDCalls)
	assert.True(t, h.IsStarted())
}

func TestFdHandlerCoalescesRepeatReadiness(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()

	calls := 0
	h := NewFdHandler(7, backend.Read, func(fh *FdHandler) {
		calls++
		assert.Equal(t, backend.Read, fh.Revents())
	})
	assert.NoError(t, h.Start(l))
	defer h.Stop()

	l.EmitFD(7, backend.Read)
	l.EmitFD(7, backend.Read) // coalesced: already pending

	l.Dispatch()
	assert.Equal(t, 1, calls)
	assert.Equal(t, backend.EventMask(0), h.Revents())
}

func TestFdHandlerSetMaskRearmsImmediately(t *testing.T) {
	fb := newFakeBackend()
	l := NewWithBackend(fb)
	defer l.Close()

	h := NewFdHandler(9, backend.Read, nil)
	assert.NoError(t, h.Start(l))
	defer h.Stop()

	assert.NoError(t, h.SetMask(backend.Write))
	assert.Equal(t, backend.Write, h.Mask())
	assert.Equal(t, []int{9}, fb.modFDCalls)
}

func TestFdHandlerStopRemovesFromBackend(t *testing.T) {
	fb := newFakeBackend()
	l := NewWithBackend(fb)

	h := NewFdHandler(11, backend.Read, nil)
	assert.NoError(t, h.Start(l))
	assert.NoError(t, h.Stop())

	assert.Equal(t, []int{11}, fb.delFDCalls)
	assert.False(t, h.IsStarted())
	assert.NoError(t, h.Stop()) // benign
}
