package changestream

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litesync/internal/row"
)

func TestStream_NotifyInRegistrationOrder(t *testing.T) {
	s := New()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		s.Register(func(ChangeEvent) error {
			got = append(got, i)
			return nil
		})
	}

	err := s.Notify(ChangeEvent{Operation: OpInsert, Table: "items", Row: row.Row{"id": int64(1)}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestStream_ListenerErrorStopsDelivery(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	called := false

	s.Register(func(ChangeEvent) error { return boom })
	s.Register(func(ChangeEvent) error {
		called = true
		return nil
	})

	err := s.Notify(ChangeEvent{Operation: OpUpdate, Table: "items"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "update items")
	assert.False(t, called, "listeners after a failing one must not run")
}

func TestStream_NoListeners(t *testing.T) {
	s := New()
	assert.NoError(t, s.Notify(ChangeEvent{Operation: OpDelete, Table: "items"}))
	assert.Equal(t, 0, s.Len())
}

func TestStream_ConcurrentRegisterAndNotify(t *testing.T) {
	s := New()
	var mu sync.Mutex
	delivered := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Register(func(ChangeEvent) error {
				mu.Lock()
				delivered++
				mu.Unlock()
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = s.Notify(ChangeEvent{Operation: OpInsert, Table: "t"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())

	mu.Lock()
	before := delivered
	mu.Unlock()
	require.NoError(t, s.Notify(ChangeEvent{Operation: OpInsert, Table: "t"}))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, before+50, delivered)
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestOperation_Valid(t *testing.T) {
	assert.True(t, OpInsert.Valid())
	assert.True(t, OpDelete.Valid())
	assert.False(t, Operation("upsert").Valid())
}
