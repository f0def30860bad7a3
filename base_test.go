package aml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefUnrefReturnCounts(t *testing.T) {
	i := NewIdle(nil)
	defer i.Stop()

	prev := i.Ref()
	assert.Equal(t, 1, prev)

	n := i.Unref()
	assert.Equal(t, 1, n)
}

func TestUnrefRunsReleaseAtZero(t *testing.T) {
	i := NewIdle(nil)

	released := false
	var gotUserdata interface{}
	i.SetUserdata("payload", func(ud interface{}) {
		released = true
		gotUserdata = ud
	})

	n := i.Unref()
	assert.Equal(t, 0, n)
	assert.True(t, released)
	assert.Equal(t, "payload", gotUserdata)
}

func TestIDsAreUniqueAndUpgradeable(t *testing.T) {
	a := NewIdle(nil)
	b := NewIdle(nil)
	defer a.Stop()
	defer b.Stop()

	assert.NotEqual(t, a.ID(), b.ID())

	obj, ok := Upgrade(a.ID())
	assert.True(t, ok)
	assert.Same(t, a, obj)
	a.Unref() // release the Upgrade-held reference
}

func TestUpgradeAfterFinalizeFails(t *testing.T) {
	i := NewIdle(nil)
	id := i.ID()
	i.Unref()

	_, ok := Upgrade(id)
	assert.False(t, ok)
}
