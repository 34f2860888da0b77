package ring_buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_Add(t *testing.T) {
	t.Run("fill ring buffer with digits until it loops, and test that it works", func(t *testing.T) {
		ringBuffer := New(10)

		for i := 0; i < 20; i++ {
			ringBuffer.Add([]float32{float32(i)})
		}

		expected := []float32{10, 11, 12, 13, 14, 15, 16, 17, 18, 19}

		assert.Equal(t, expected, ringBuffer.Read())
		assert.Equal(t, 10, ringBuffer.Len())
	})

	t.Run("a partially filled buffer only returns what was written", func(t *testing.T) {
		ringBuffer := New(8)

		ringBuffer.Add([]float32{0.5, -0.5, 0.25})

		assert.Equal(t, []float32{0.5, -0.5, 0.25}, ringBuffer.Read())
		assert.Equal(t, 3, ringBuffer.Len())
	})

	t.Run("a write larger than the buffer keeps the newest samples", func(t *testing.T) {
		ringBuffer := New(3)

		ringBuffer.Add([]float32{1, 2, 3, 4, 5})

		assert.Equal(t, []float32{3, 4, 5}, ringBuffer.Read())
	})

	t.Run("clear empties the buffer", func(t *testing.T) {
		ringBuffer := New(4)
		ringBuffer.Add([]float32{1, 2, 3})

		ringBuffer.Clear()

		assert.Empty(t, ringBuffer.Read())
		assert.Equal(t, 0, ringBuffer.Len())
	})

	t.Run("a zero sized buffer ignores writes", func(t *testing.T) {
		ringBuffer := New(0)

		ringBuffer.Add([]float32{1, 2})

		assert.Empty(t, ringBuffer.Read())
	})
}
