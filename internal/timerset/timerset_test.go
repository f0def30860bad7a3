package timerset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeekOrdersBySmallestDeadline(t *testing.T) {
	s := New()
	s.Insert(300, "c")
	s.Insert(100, "a")
	s.Insert(200, "b")

	e, ok := s.Peek()
	assert.True(t, ok)
	assert.Equal(t, int64(100), e.Deadline)
	assert.Equal(t, "a", e.Handle)
}

func TestPopExpiredAscending(t *testing.T) {
	s := New()
	s.Insert(300, "c")
	s.Insert(100, "a")
	s.Insert(200, "b")

	expired := s.PopExpired(250)
	assert.Len(t, expired, 2)
	assert.Equal(t, "a", expired[0].Handle)
	assert.Equal(t, "b", expired[1].Handle)
	assert.Equal(t, 1, s.Len())
}

func TestRemoveDisarms(t *testing.T) {
	s := New()
	e := s.Insert(100, "a")
	s.Insert(200, "b")

	s.Remove(e)
	assert.Equal(t, 1, s.Len())

	expired := s.PopExpired(1000)
	assert.Len(t, expired, 1)
	assert.Equal(t, "b", expired[0].Handle)
}

func TestRemoveAfterFireIsNoop(t *testing.T) {
	s := New()
	e := s.Insert(100, "a")

	expired := s.PopExpired(100)
	assert.Len(t, expired, 1)

	assert.NotPanics(t, func() { s.Remove(e) })
}

func TestPeekEmpty(t *testing.T) {
	s := New()
	_, ok := s.Peek()
	assert.False(t, ok)
}
