package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_CommitsOnSuccess(t *testing.T) {
	m := quietMapper(map[string]any{"a": 1})

	err := m.Transaction(func(m *Mapper) error {
		if err := m.Apply(map[string]any{"b": 2}, Merge); err != nil {
			return err
		}
		return m.Apply(map[string]any{"a": 3}, Overwrite)
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 3, "b": 2}, m.Schema)
	assert.Equal(t, 0, m.Depth())
}

func TestTransaction_RollsBackEarlierSteps(t *testing.T) {
	m := quietMapper(map[string]any{"a": 1})

	err := m.Transaction(func(m *Mapper) error {
		if err := m.Apply(map[string]any{"b": 2}, Merge); err != nil {
			return err
		}
		return m.Apply(map[string]any{"a": 99}, Manual)
	})
	require.True(t, IsConflict(err))
	assert.Equal(t, map[string]any{"a": 1}, m.Schema)
	assert.Equal(t, 0, m.Depth())
}

func TestTransaction_UnknownStrategyRollsBack(t *testing.T) {
	m := quietMapper(map[string]any{"a": 1})

	err := m.Transaction(func(m *Mapper) error {
		m.Schema["scribbled"] = true
		return m.Apply(map[string]any{"a": 2}, Strategy("bogus"))
	})
	require.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Equal(t, map[string]any{"a": 1}, m.Schema)
}

func TestTransaction_RollsBackOnPanic(t *testing.T) {
	m := quietMapper(map[string]any{"a": 1})

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = m.Transaction(func(m *Mapper) error {
			m.Schema["a"] = 2
			panic("kaboom")
		})
	})
	assert.Equal(t, map[string]any{"a": 1}, m.Schema)
	assert.Equal(t, 0, m.Depth())
}

func TestTransaction_Nested(t *testing.T) {
	m := quietMapper(map[string]any{"a": 1})

	err := m.Transaction(func(outer *Mapper) error {
		require.NoError(t, outer.Apply(map[string]any{"b": 2}, Merge))

		inner := outer.Transaction(func(inner *Mapper) error {
			assert.Equal(t, 2, inner.Depth())
			require.NoError(t, inner.Apply(map[string]any{"c": 3}, Merge))
			return errors.New("inner failed")
		})
		require.Error(t, inner)
		assert.Equal(t, map[string]any{"a": 1, "b": 2}, outer.Schema, "inner rollback restores the outer state")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, m.Schema)
}

func TestTransaction_IndependentMappers(t *testing.T) {
	m1 := quietMapper(map[string]any{"owner": "m1"})
	m2 := quietMapper(map[string]any{"owner": "m2"})

	err := m1.Transaction(func(m1 *Mapper) error {
		// A concurrent-looking transaction on another mapper must not clobber m1's snapshot.
		require.NoError(t, m2.Transaction(func(m2 *Mapper) error {
			return m2.Apply(map[string]any{"owner": "m2-new"}, Overwrite)
		}))
		m1.Schema["owner"] = "scribbled"
		return errors.New("fail m1")
	})
	require.Error(t, err)
	assert.Equal(t, map[string]any{"owner": "m1"}, m1.Schema)
	assert.Equal(t, map[string]any{"owner": "m2-new"}, m2.Schema)
}
