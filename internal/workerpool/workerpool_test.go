package workerpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquireReleaseLifecycle(t *testing.T) {
	assert.NoError(t, Acquire(2))
	assert.NoError(t, Acquire(2))

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	err := Enqueue(func() { ran = true }, func() { wg.Done() })
	assert.NoError(t, err)
	wg.Wait()
	assert.True(t, ran)

	Release()
	Release()

	err = Enqueue(func() {}, func() {})
	assert.Error(t, err)
}

func TestEnqueueRunsDoneAfterWork(t *testing.T) {
	assert.NoError(t, Acquire(1))
	defer Release()

	var mu sync.Mutex
	order := make([]string, 0, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	err := Enqueue(func() {
		mu.Lock()
		order = append(order, "work")
		mu.Unlock()
		time.Sleep(time.Millisecond)
	}, func() {
		mu.Lock()
		order = append(order, "done")
		mu.Unlock()
		wg.Done()
	})
	assert.NoError(t, err)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"work", "done"}, order)
}
