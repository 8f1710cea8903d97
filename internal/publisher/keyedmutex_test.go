package publisher

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := newKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("shared")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Empty(t, km.locks, "released entries must not accumulate")
}

func TestKeyedMutex_IndependentKeysDoNotBlock(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("a")
	defer unlockA()

	acquired := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(acquired)
	}()

	select {
	case <-acquired:
	default:
		// Give the goroutine a chance; the point is that it does not
		// deadlock behind key "a".
		<-acquired
	}
}
