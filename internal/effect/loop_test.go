package effect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_FIFO(t *testing.T) {
	loop := NewLoop(nil)

	var got []int
	for i := 1; i <= 3; i++ {
		require.True(t, loop.Post(func() { got = append(got, i) }))
	}
	assert.Equal(t, 3, loop.Len())

	loop.Close()
	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestLoop_PostAfterClose(t *testing.T) {
	loop := NewLoop(nil)
	loop.Close()
	loop.Close()

	assert.False(t, loop.Post(func() {}))
}

func TestLoop_TasksPostedFromTasksRun(t *testing.T) {
	loop := NewLoop(nil)

	var got []string
	loop.Post(func() {
		got = append(got, "outer")
		loop.Post(func() {
			got = append(got, "inner")
			loop.Close()
		})
	})

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []string{"outer", "inner"}, got)
}

func TestLoop_PanicDoesNotStopLoop(t *testing.T) {
	loop := NewLoop(nil)

	ran := false
	loop.Post(func() { panic("task failed") })
	loop.Post(func() { ran = true })
	loop.Close()

	require.NoError(t, loop.Run(context.Background()))
	assert.True(t, ran)
}

func TestLoop_RunStopsOnContext(t *testing.T) {
	loop := NewLoop(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := loop.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoop_ConcurrentPosts(t *testing.T) {
	loop := NewLoop(nil)

	done := make(chan error)
	go func() { done <- loop.Run(context.Background()) }()

	var wg sync.WaitGroup
	count := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Post(func() { count++ })
		}()
	}
	wg.Wait()
	loop.Close()
	require.NoError(t, <-done)
	assert.Equal(t, 50, count)
}

func TestFuture_SettlesOnce(t *testing.T) {
	f, settle := NewFuture()
	assert.False(t, f.Settled())

	settle(1, nil)
	settle(2, errors.New("ignored"))

	v, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, f.Settled())
}

func TestFuture_AwaitAfterSettle(t *testing.T) {
	f := Failed(errors.New("boom"))

	var got error
	f.Await(func(_ any, err error) { got = err })
	assert.EqualError(t, got, "boom")
}

func TestFuture_WaitHonorsContext(t *testing.T) {
	f, _ := NewFuture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFuture_SpawnRecoversPanic(t *testing.T) {
	f := Spawn(context.Background(), func(context.Context) (any, error) { panic("spawned") })

	_, err := f.Wait(context.Background())
	var perr *PanicError
	require.ErrorAs(t, err, &perr)
}

func TestJoin_OrderedValues(t *testing.T) {
	slow, settleSlow := NewFuture()
	joined := Join(slow, Resolved("b"))

	assert.False(t, joined.Settled())
	settleSlow("a", nil)

	v, err := joined.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)
}

func TestJoin_FirstError(t *testing.T) {
	pending, _ := NewFuture()
	joined := Join(pending, Failed(errors.New("boom")))

	_, err := joined.Wait(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestJoin_Empty(t *testing.T) {
	v, err := Join().Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{}, v)
}
