package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_NotifyInOrder(t *testing.T) {
	var s Source[int]
	var got []string

	s.Add(func(v int) { got = append(got, "a") })
	s.Add(func(v int) { got = append(got, "b") })
	s.Notify(1)

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSource_NotifyWithoutListeners(t *testing.T) {
	var s Source[string]
	s.Notify("nothing")
	assert.Equal(t, 0, s.Len())
}

func TestSource_UnsubscribeIsIdempotent(t *testing.T) {
	var s Source[int]
	calls := 0
	remove := s.Add(func(int) { calls++ })
	other := 0
	s.Add(func(int) { other++ })

	remove()
	remove()
	s.Notify(1)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, other)
	assert.Equal(t, 1, s.Len())
}

func TestSource_AddDuringNotifyWaitsForNextNotify(t *testing.T) {
	var s Source[int]
	late := 0
	subscribed := false

	s.Add(func(int) {
		if subscribed {
			return
		}
		subscribed = true
		s.Add(func(int) { late++ })
	})

	s.Notify(1)
	assert.Equal(t, 0, late, "listener added mid-notify must not see the current event")

	s.Notify(2)
	assert.Equal(t, 1, late)
}

func TestSource_RemoveDuringNotifySkipsListener(t *testing.T) {
	var s Source[int]
	var removeB, removeC func()
	var c3 func(int)
	c3Calls := 0
	bCalls, cCalls := 0, 0

	s.Add(func(int) {
		removeB()
		removeC()
		c3 = func(int) { c3Calls++ }
		s.Add(c3)
	})
	removeB = s.Add(func(int) { bCalls++ })
	removeC = s.Add(func(int) { cCalls++ })

	s.Notify(1)

	assert.Equal(t, 0, bCalls)
	assert.Equal(t, 0, cCalls)
	assert.Equal(t, 0, c3Calls)
	require.Equal(t, 2, s.Len())

	s.Notify(2)
	assert.Equal(t, 0, bCalls)
	assert.Equal(t, 1, c3Calls)
}

func TestSource_RemoveBufferedListener(t *testing.T) {
	var s Source[int]
	bufferedCalls := 0

	s.Add(func(int) {
		remove := s.Add(func(int) { bufferedCalls++ })
		remove()
	})

	s.Notify(1)
	s.Notify(2)

	assert.Equal(t, 0, bufferedCalls)
	assert.Equal(t, 1, s.Len())
}

func TestSource_ListenerPanicStillSettles(t *testing.T) {
	var s Source[int]
	late := 0

	s.Add(func(v int) {
		if v == 1 {
			s.Add(func(int) { late++ })
			panic("boom")
		}
	})

	assert.Panics(t, func() { s.Notify(1) })

	s.Notify(2)
	assert.Equal(t, 1, late)
}

func TestSource_Clear(t *testing.T) {
	var s Source[int]
	calls := 0
	s.Add(func(int) { calls++ })
	s.Add(func(int) { calls++ })

	s.Clear()
	s.Notify(1)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, s.Len())
}
