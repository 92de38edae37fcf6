package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicSetGet(t *testing.T) {
	engine, err := Open(t.TempDir())
	require.NoError(t, err)

	prior, hadPrior, err := engine.Set(1, []byte("gopher"))
	require.NoError(t, err)
	assert.False(t, hadPrior)
	assert.Nil(t, prior)

	value, ok, err := engine.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("gopher"), value)

	require.NoError(t, engine.Close())
}

func TestSetReturnsPriorValue(t *testing.T) {
	engine, err := Open(t.TempDir())
	require.NoError(t, err)
	defer engine.Close()

	_, hadPrior, err := engine.Set(1, []byte("gopher"))
	require.NoError(t, err)
	assert.False(t, hadPrior)

	prior, hadPrior, err := engine.Set(1, []byte("badger"))
	require.NoError(t, err)
	assert.True(t, hadPrior)
	assert.Equal(t, []byte("gopher"), prior)

	value, ok, err := engine.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("badger"), value)
}

func TestGetMissingKey(t *testing.T) {
	engine, err := Open(t.TempDir())
	require.NoError(t, err)
	defer engine.Close()

	value, ok, err := engine.Get(42)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestRemoveExistingKey(t *testing.T) {
	engine, err := Open(t.TempDir())
	require.NoError(t, err)
	defer engine.Close()

	_, _, err = engine.Set(1, []byte("gopher"))
	require.NoError(t, err)

	prior, hadPrior, err := engine.Remove(1)
	require.NoError(t, err)
	assert.True(t, hadPrior)
	assert.Equal(t, []byte("gopher"), prior)

	_, ok, err := engine.Get(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveAbsentKeyIsNoop(t *testing.T) {
	dir := t.TempDir()
	engine, err := Open(dir)
	require.NoError(t, err)

	prior, hadPrior, err := engine.Remove(99)
	require.NoError(t, err)
	assert.False(t, hadPrior)
	assert.Nil(t, prior)

	sizeBefore := engine.currentSize()
	require.NoError(t, engine.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, sizeBefore, reopened.currentSize())
}

func TestRemoveAlreadyRemovedKeyIsNoop(t *testing.T) {
	engine, err := Open(t.TempDir())
	require.NoError(t, err)
	defer engine.Close()

	_, _, err = engine.Set(1, []byte("gopher"))
	require.NoError(t, err)
	_, hadPrior, err := engine.Remove(1)
	require.NoError(t, err)
	require.True(t, hadPrior)

	sizeBefore := engine.currentSize()

	_, hadPrior, err = engine.Remove(1)
	require.NoError(t, err)
	assert.False(t, hadPrior)
	assert.Equal(t, sizeBefore, engine.currentSize())
}

func TestEmptyValueRoundTrips(t *testing.T) {
	engine, err := Open(t.TempDir())
	require.NoError(t, err)
	defer engine.Close()

	_, _, err = engine.Set(1, []byte{})
	require.NoError(t, err)

	value, ok, err := engine.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, value)
}

func TestOverwriteThenReopenRecoversLatestValue(t *testing.T) {
	dir := t.TempDir()
	engine, err := Open(dir)
	require.NoError(t, err)

	_, _, err = engine.Set(7, []byte("first"))
	require.NoError(t, err)
	_, _, err = engine.Set(7, []byte("second"))
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get(7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), value)
}

func TestReopenRecoversTombstones(t *testing.T) {
	dir := t.TempDir()
	engine, err := Open(dir)
	require.NoError(t, err)

	_, _, err = engine.Set(7, []byte("value"))
	require.NoError(t, err)
	_, hadPrior, err := engine.Remove(7)
	require.NoError(t, err)
	require.True(t, hadPrior)
	require.NoError(t, engine.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok, err := reopened.Get(7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOperationsFailAfterClose(t *testing.T) {
	engine, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, engine.Close())

	_, _, err = engine.Set(1, []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)

	_, _, err = engine.Get(1)
	assert.ErrorIs(t, err, ErrClosed)

	_, _, err = engine.Remove(1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	engine, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())
}

func TestOpenRejectsConcurrentProcess(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir)
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(dir)
	assert.True(t, errors.Is(err, ErrAlreadyLocked))
}

func TestOpenOnEmptyDirectoryStartsEmpty(t *testing.T) {
	engine, err := Open(t.TempDir())
	require.NoError(t, err)
	defer engine.Close()

	assert.Equal(t, int64(0), engine.currentSize())

	_, ok, err := engine.Get(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestConcurrentSetsProduceNonOverlappingValuePointers guards against a
// race where a stale file-size read lets two concurrent appends compute
// overlapping value pointers: every key's readback must match what was
// written for that key, never a neighbor's bytes.
func TestConcurrentSetsProduceNonOverlappingValuePointers(t *testing.T) {
	engine, err := Open(t.TempDir())
	require.NoError(t, err)
	defer engine.Close()

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			value := []byte(fmt.Sprintf("value-for-key-%d", i))
			_, _, err := engine.Set(int64(i), value)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < writers; i++ {
		value, ok, err := engine.Get(int64(i))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("value-for-key-%d", i), string(value))
	}
}
