package signalwatch

import (
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddAndDrainPending(t *testing.T) {
	var woke int32
	w := New(func() { atomic.StoreInt32(&woke, 1) })
	defer w.Close()

	assert.NoError(t, w.Add(int(syscall.SIGUSR1)))

	self, err := os.FindProcess(os.Getpid())
	assert.NoError(t, err)
	assert.NoError(t, self.Signal(syscall.SIGUSR1))

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&woke) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&woke))

	pending := w.DrainPending()
	assert.Contains(t, pending, int(syscall.SIGUSR1))

	assert.Empty(t, w.DrainPending())
}

func TestDelStopsDelivery(t *testing.T) {
	w := New(func() {})
	defer w.Close()

	assert.NoError(t, w.Add(int(syscall.SIGUSR2)))
	assert.NoError(t, w.Del(int(syscall.SIGUSR2)))

	self, err := os.FindProcess(os.Getpid())
	assert.NoError(t, err)
	assert.NoError(t, self.Signal(syscall.SIGUSR2))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, w.DrainPending())
}
