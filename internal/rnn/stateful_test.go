package rnn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/internal/backend/cpu"
)

func TestStateStore_Update(t *testing.T) {
	backend := cpu.New()
	store := NewStateStore[*Backend]()
	assert.Equal(t, 0, store.BatchSize())
	assert.Nil(t, store.Snapshot())

	first := from(backend, []float32{1, 2}, 1, 2)
	require.NoError(t, store.Update(func(prev State[*Backend]) (State[*Backend], error) {
		assert.Nil(t, prev)
		return State[*Backend]{first}, nil
	}))
	assert.Equal(t, 1, store.BatchSize())

	errFail := errors.New("fail")
	err := store.Update(func(prev State[*Backend]) (State[*Backend], error) {
		return nil, errFail
	})
	assert.ErrorIs(t, err, errFail)
	assert.False(t, first.Released(), "failed update keeps the held states")

	// Carrying a component over must not release it.
	second := from(backend, []float32{3}, 1, 1)
	require.NoError(t, store.Update(func(prev State[*Backend]) (State[*Backend], error) {
		return State[*Backend]{prev[0], second}, nil
	}))
	assert.False(t, first.Released())

	require.NoError(t, store.Update(func(State[*Backend]) (State[*Backend], error) {
		return State[*Backend]{from(backend, []float32{5, 6}, 1, 2)}, nil
	}))
	assert.True(t, first.Released())
	assert.True(t, second.Released())
}

func TestStateStore_ResetAndClear(t *testing.T) {
	backend := cpu.New()
	store := NewStateStore[*Backend]()

	a := from(backend, []float32{1, 2, 3, 4}, 2, 2)
	store.Reset(State[*Backend]{a}, true)
	assert.Equal(t, 2, store.BatchSize())

	snap := store.Snapshot()
	assert.NotSame(t, a, snap[0])
	assert.Equal(t, a.Data(), snap[0].Data())

	b := from(backend, []float32{0, 0}, 1, 2)
	store.Reset(State[*Backend]{b}, false)
	assert.False(t, a.Released(), "reset without release leaves previous states alone")

	store.Clear()
	assert.True(t, b.Released())
	assert.Equal(t, 0, store.BatchSize())
}
