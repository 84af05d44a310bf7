package locking

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRefCount(t *testing.T) {
	r := NewRefCount()
	require.Equal(t, int32(1), r.Get())
	r.Inc()
	require.False(t, r.Dec())
	require.True(t, r.Dec())
	require.Panics(t, func() { r.Dec() })
}

func TestRegistry_SerializesSameKey(t *testing.T) {
	reg := NewRegistry()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := reg.Lock("db/users")
			defer unlock()
			// read-modify-write that would lose updates without the lock
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
	require.Equal(t, 0, reg.Held(), "entries are dropped once unused")
}

func TestRegistry_DistinctKeysDoNotBlock(t *testing.T) {
	reg := NewRegistry()

	unlockA := reg.Lock("db/a")
	unlockB := reg.Lock("db/b")
	require.Equal(t, 2, reg.Held())

	unlockA()
	unlockA() // second call is a no-op
	unlockB()
	require.Equal(t, 0, reg.Held())
}
