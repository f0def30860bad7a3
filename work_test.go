package aml

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkRunsOffThreadAndDoneOnDispatch(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()
	assert.NoError(t, l.RequireWorkers(2))

	var workRan, doneRan int32

	w := NewWork(func() {
		atomic.StoreInt32(&workRan, 1)
		time.Sleep(5 * time.Millisecond)
	}, func(work *Work) {
		atomic.StoreInt32(&doneRan, 1)
	})
	assert.NoError(t, w.Start(l))
	w.Unref()

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&doneRan) == 0 && time.Now().Before(deadline) {
		l.Dispatch()
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&workRan))
	assert.Equal(t, int32(1), atomic.LoadInt32(&doneRan))
	assert.False(t, w.IsStarted())
}

func TestWorkStopBeforeCompletionReleasesLoopReference(t *testing.T) {
	l := NewWithBackend(newFakeBackend())
	defer l.Close()
	assert.NoError(t, l.RequireWorkers(1))

	block := make(chan struct{})
	w := NewWork(func() {
		<-block
	}, nil)
	assert.NoError(t, w.Start(l))

	assert.NoError(t, w.Stop())
	assert.False(t, w.IsStarted())

	close(block)
}
