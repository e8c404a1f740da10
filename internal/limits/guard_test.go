package limits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGoroutineLimiterAcquireRelease(t *testing.T) {
	gl := NewGoroutineLimiter(2)

	assert.True(t, gl.Acquire())
	assert.True(t, gl.Acquire())
	assert.False(t, gl.Acquire())
	assert.Equal(t, 2, gl.Current())

	gl.Release()
	assert.True(t, gl.Acquire())
}

func TestGoroutineLimiterMax(t *testing.T) {
	gl := NewGoroutineLimiter(5)
	assert.Equal(t, 5, gl.Max())
	assert.Equal(t, 0, gl.Current())
}
