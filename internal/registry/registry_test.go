package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAndUnref(t *testing.T) {
	id := Register("payload")
	assert.NotZero(t, id)
	assert.Equal(t, 1, Count(id))

	prev := Ref(id)
	assert.Equal(t, 1, prev)
	assert.Equal(t, 2, Count(id))

	n, obj := Unref(id)
	assert.Equal(t, 1, n)
	assert.Equal(t, "payload", obj)

	n, _ = Unref(id)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, Count(id))
}

func TestUpgradeAfterFinalize(t *testing.T) {
	id := Register("x")
	Unref(id)

	obj, ok := Upgrade(id)
	assert.False(t, ok)
	assert.Nil(t, obj)
}

func TestUpgradeHoldsExtraRef(t *testing.T) {
	id := Register("x")

	obj, ok := Upgrade(id)
	assert.True(t, ok)
	assert.Equal(t, "x", obj)
	assert.Equal(t, 2, Count(id))

	n, _ := Unref(id)
	assert.Equal(t, 1, n)
	n, _ = Unref(id)
	assert.Equal(t, 0, n)
}

func TestIDsNeverReused(t *testing.T) {
	a := Register("a")
	Unref(a)
	b := Register("b")
	assert.NotEqual(t, a, b)
}
