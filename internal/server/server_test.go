package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitBrokersTrimsAndDropsBlanks(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers("a:9092, b:9092"))
	assert.Equal(t, []string{"a:9092"}, splitBrokers(" a:9092 , , "))
	assert.Nil(t, splitBrokers(""))
}
