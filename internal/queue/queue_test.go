package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKBest(t *testing.T) {
	t.Run("KeepsSmallest", func(t *testing.T) {
		q := NewKBest(3)
		for i, d := range []float32{5, 1, 4, 2, 3} {
			q.Offer(Candidate{Index: i, Distance: d})
		}

		got := q.Drain()
		require.Len(t, got, 3)
		assert.Equal(t, Candidate{Index: 1, Distance: 1}, got[0])
		assert.Equal(t, Candidate{Index: 3, Distance: 2}, got[1])
		assert.Equal(t, Candidate{Index: 4, Distance: 3}, got[2])
	})

	t.Run("TiesPreferEarlierIndex", func(t *testing.T) {
		q := NewKBest(2)
		q.Offer(Candidate{Index: 2, Distance: 1})
		q.Offer(Candidate{Index: 0, Distance: 1})
		q.Offer(Candidate{Index: 1, Distance: 1})

		got := q.Drain()
		require.Len(t, got, 2)
		assert.Equal(t, 0, got[0].Index)
		assert.Equal(t, 1, got[1].Index)
	})

	t.Run("Underfilled", func(t *testing.T) {
		q := NewKBest(5)
		q.Offer(Candidate{Index: 0, Distance: 2})
		q.Offer(Candidate{Index: 1, Distance: 1})

		assert.False(t, q.Full())
		got := q.Drain()
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].Index)
	})

	t.Run("WorstTracksRoot", func(t *testing.T) {
		q := NewKBest(2)
		q.Offer(Candidate{Index: 0, Distance: 3})
		q.Offer(Candidate{Index: 1, Distance: 7})
		assert.Equal(t, float32(7), q.Worst())

		q.Offer(Candidate{Index: 2, Distance: 5})
		assert.Equal(t, float32(5), q.Worst())
	})
}
