package lib

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceStartsAtOne(t *testing.T) {
	sequence := NewUIDSequence()
	assert.Equal(t, uint32(0), sequence.Last())
	assert.Equal(t, uint32(1), sequence.Next())
	assert.Equal(t, uint32(1), sequence.Last())
}

func TestSequenceIsStrictlyIncreasing(t *testing.T) {
	sequence := NewUIDSequence()
	previous := uint32(0)
	for i := 0; i < 1000; i++ {
		uid := sequence.Next()
		require.Greater(t, uid, previous)
		previous = uid
	}
	assert.Equal(t, previous, sequence.Last())
}

func TestSequenceUnderConcurrentDelivery(t *testing.T) {
	const workers = 10
	const perWorker = 100

	sequence := NewUIDSequence()
	uids := make(chan uint32, workers*perWorker)

	wg := sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				uids <- sequence.Next()
			}
		}()
	}
	wg.Wait()
	close(uids)

	all := make([]uint32, 0, workers*perWorker)
	for uid := range uids {
		all = append(all, uid)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	require.Len(t, all, workers*perWorker)
	for i, uid := range all {
		// no duplicate, no gap
		assert.Equal(t, uint32(i+1), uid)
	}
	assert.Equal(t, uint32(workers*perWorker), sequence.Last())
}

func TestNewUIDValidityIsNeverZero(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.NotZero(t, NewUIDValidity())
	}
}
