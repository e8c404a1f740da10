package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxSessionsForMemoryDefaultsWhenUnlimited(t *testing.T) {
	assert.Equal(t, 500, MaxSessionsForMemory(0))
}

func TestMaxSessionsForMemoryScalesWithLimit(t *testing.T) {
	n := MaxSessionsForMemory(2 * 1024 * 1024 * 1024)
	assert.Greater(t, n, 0)
	assert.LessOrEqual(t, n, 50000)
}

func TestMaxSessionsForMemoryClampsVerySmallLimit(t *testing.T) {
	n := MaxSessionsForMemory(1024)
	assert.GreaterOrEqual(t, n, 10)
}

func TestMaxSessionsForMemoryClampsVeryLargeLimit(t *testing.T) {
	n := MaxSessionsForMemory(1 << 50)
	assert.Equal(t, 50000, n)
}
