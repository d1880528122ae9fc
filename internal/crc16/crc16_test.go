package crc16

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashSlotKnownValues(t *testing.T) {
	assert.Equal(t, 12182, HashSlot([]byte("foo")))
	assert.Equal(t, HashSlot([]byte("foo")), HashSlot([]byte("{foo}bar")))
	assert.Equal(t, HashSlot([]byte("{}x")), HashSlot([]byte("{}x")))
	assert.Equal(t, HashSlot([]byte("b")), HashSlot([]byte("a{b}c{d}")))
}

func TestTagExtraction(t *testing.T) {
	assert.Equal(t, []byte("bar"), Tag([]byte("{bar}")))
	assert.Equal(t, []byte("foo{bar"), Tag([]byte("foo{bar"))) // no closing brace: whole key
	assert.Equal(t, []byte("{}x"), Tag([]byte("{}x")))         // empty interior: whole key
	assert.Equal(t, []byte("b"), Tag([]byte("a{b}c{d}")))      // first balanced pair wins
}

func TestHashSlotInRange(t *testing.T) {
	for _, k := range []string{"", "a", "hello world", "{tag}rest", "k0", "k1"} {
		slot := HashSlot([]byte(k))
		assert.GreaterOrEqual(t, slot, 0)
		assert.Less(t, slot, numSlots)
	}
}
