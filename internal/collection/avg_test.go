package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAvgZeroValue(t *testing.T) {
	var a Avg
	assert.Zero(t, a.Get())
}

func TestAvgAddRemove(t *testing.T) {
	var a Avg
	a.Add(10)
	a.Add(20)
	assert.InDelta(t, 15, a.Get(), 1e-9)

	a.Remove(10)
	assert.InDelta(t, 20, a.Get(), 1e-9)
}

func TestAvgWeighted(t *testing.T) {
	var a Avg
	a.Add2(10, 1)
	a.Add2(40, 3)
	assert.InDelta(t, 12.5, a.Get(), 1e-9)

	a.Remove2(40, 3)
	assert.InDelta(t, 10, a.Get(), 1e-9)
}

func TestAvgRemoveTooMuchPanics(t *testing.T) {
	var a Avg
	a.Add(1)
	assert.Panics(t, func() { a.Remove2(1, 2) })
}

func TestMaxIf(t *testing.T) {
	items := []string{"a", "bb", "ccc", "dddd"}

	longest, ok := MaxIf(items, func(s string) int { return len(s) },
		func(s string, n int) bool { return true })
	assert.True(t, ok)
	assert.Equal(t, "dddd", longest)

	// the predicate excludes items from the maximum entirely
	longest, ok = MaxIf(items, func(s string) int { return len(s) },
		func(s string, n int) bool { return n < 4 })
	assert.True(t, ok)
	assert.Equal(t, "ccc", longest)

	_, ok = MaxIf(items, func(s string) int { return len(s) },
		func(s string, n int) bool { return false })
	assert.False(t, ok)
}
