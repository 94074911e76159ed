package review

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupLocks_MutualExclusion(t *testing.T) {
	locks := newGroupLocks()
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("G0001")
			defer unlock()
			v := counter
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.size())
}

func TestGroupLocks_IndependentKeys(t *testing.T) {
	locks := newGroupLocks()

	unlockA := locks.lock("G0001")
	// A different key is not blocked by G0001.
	unlockB := locks.lock("G0002")
	assert.Equal(t, 2, locks.size())

	unlockB()
	unlockA()
	assert.Equal(t, 0, locks.size())
}
