package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_DropsOldestWhenFull(t *testing.T) {
	buf := NewRingBuffer(3)
	for _, subject := range []string{"a", "b", "c"} {
		assert.False(t, buf.Enqueue(Event{Subject: subject}))
	}
	assert.True(t, buf.Enqueue(Event{Subject: "d"}))

	batch := buf.DequeueBatch(10)
	require.Len(t, batch, 3)
	assert.Equal(t, "b", batch[0].Subject)
	assert.Equal(t, "d", batch[2].Subject)
	assert.Equal(t, int64(1), buf.Dropped())
	assert.Zero(t, buf.Len())
}

func TestRingBuffer_DequeueInBatches(t *testing.T) {
	buf := NewRingBuffer(10)
	for range 5 {
		buf.Enqueue(Event{})
	}
	assert.Len(t, buf.DequeueBatch(2), 2)
	assert.Len(t, buf.DequeueBatch(2), 2)
	assert.Len(t, buf.DequeueBatch(2), 1)
	assert.Nil(t, buf.DequeueBatch(2))
}
