package writeback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stash/internal/metrics"
	"github.com/roach88/stash/internal/storage"
)

// recordingStorage wraps Memory and records every batch call.
type recordingStorage struct {
	*storage.Memory
	mu        sync.Mutex
	setCalls  [][]storage.Entry
	remCalls  [][]string
	failSets  int
	failError error
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{Memory: storage.NewMemory(), failError: errors.New("disk full")}
}

func (r *recordingStorage) Set(ctx context.Context, entries ...storage.Entry) error {
	r.mu.Lock()
	r.setCalls = append(r.setCalls, entries)
	fail := r.failSets > 0
	if fail {
		r.failSets--
	}
	r.mu.Unlock()
	if fail {
		return r.failError
	}
	return r.Memory.Set(ctx, entries...)
}

func (r *recordingStorage) Remove(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	r.remCalls = append(r.remCalls, keys)
	r.mu.Unlock()
	return r.Memory.Remove(ctx, keys...)
}

func (r *recordingStorage) calls() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.setCalls), len(r.remCalls)
}

func TestQueue_CoalescesLastWriteWins(t *testing.T) {
	st := newRecordingStorage()
	busy := true
	q := New(Config{Storage: st, Busy: func() bool { return busy }})

	q.Enqueue(Set("k", Literal("a")))
	q.Enqueue(Set("k", Literal("b")))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, []Action{Set("k", Literal("a")), Set("k", Literal("b"))}, q.Pending())

	before := testutil.ToFloat64(metrics.CoalescedWritesTotal)
	require.NoError(t, q.Flush(context.Background()))

	assert.Equal(t, map[string]string{"k": "b"}, st.Snapshot())
	require.Len(t, st.setCalls, 1)
	assert.Equal(t, []storage.Entry{{Key: "k", Value: "b"}}, st.setCalls[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CoalescedWritesTotal)-before)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PartitionsSetsAndRemoves(t *testing.T) {
	st := newRecordingStorage()
	require.NoError(t, st.Memory.Set(context.Background(), storage.Entry{Key: "gone", Value: "x"}))
	q := New(Config{Storage: st, Busy: func() bool { return true }})

	q.Enqueue(
		Set("a", Literal("1")),
		Remove("gone"),
		Set("b", Literal("2")),
		Set("gone", Literal("resurrected")),
		Remove("b"),
	)
	require.NoError(t, q.Flush(context.Background()))

	require.Len(t, st.setCalls, 1)
	assert.Equal(t, []storage.Entry{{Key: "a", Value: "1"}, {Key: "gone", Value: "resurrected"}}, st.setCalls[0])
	require.Len(t, st.remCalls, 1)
	assert.Equal(t, []string{"b"}, st.remCalls[0])
	assert.Equal(t, map[string]string{"a": "1", "gone": "resurrected"}, st.Snapshot())
}

func TestQueue_DeferredResolvedAtFlush(t *testing.T) {
	st := newRecordingStorage()
	q := New(Config{Storage: st, Busy: func() bool { return true }})

	counter := 1
	q.Enqueue(Set("count", Deferred(func() (string, error) {
		return string(rune('0' + counter)), nil
	})))
	counter = 3

	require.NoError(t, q.Flush(context.Background()))
	assert.Equal(t, "3", st.Snapshot()["count"])
}

func TestQueue_DeferredErrorDropsKey(t *testing.T) {
	st := newRecordingStorage()
	q := New(Config{Storage: st, Busy: func() bool { return true }})

	q.Enqueue(
		Set("bad", Deferred(func() (string, error) { return "", errors.New("unencodable") })),
		Set("good", Literal("ok")),
	)
	require.NoError(t, q.Flush(context.Background()))
	assert.Equal(t, map[string]string{"good": "ok"}, st.Snapshot())
}

func TestQueue_EnqueueOutsideContinuationFlushes(t *testing.T) {
	st := newRecordingStorage()
	q := New(Config{Storage: st})

	q.Enqueue(Set("k", Literal("v")))

	assert.Equal(t, "v", st.Snapshot()["k"])
	assert.Equal(t, 0, q.Len())
}

func TestQueue_BusyDefersFlush(t *testing.T) {
	st := newRecordingStorage()
	busy := true
	q := New(Config{Storage: st, Busy: func() bool { return busy }})

	q.Enqueue(Set("k", Literal("v")))
	assert.Empty(t, st.Snapshot())

	busy = false
	q.Schedule(false)
	assert.Equal(t, "v", st.Snapshot()["k"])
}

func TestQueue_FailedBatchIsRetried(t *testing.T) {
	st := newRecordingStorage()
	st.failSets = 1
	q := New(Config{Storage: st, Busy: func() bool { return true }})

	q.Enqueue(Set("k", Literal("a")), Remove("r"))

	before := testutil.ToFloat64(metrics.FlushFailureTotal)
	err := q.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FlushFailureTotal)-before)
	assert.Equal(t, 2, q.Len(), "failed batch must stay queued")

	q.Enqueue(Set("k", Literal("b")))
	require.NoError(t, q.Flush(context.Background()))

	assert.Equal(t, map[string]string{"k": "b"}, st.Snapshot())
	sets, removes := st.calls()
	assert.Equal(t, 2, sets)
	assert.Equal(t, 1, removes)
}

// serialPoster runs posted functions under a mutex, standing in for the
// owning loop goroutine.
type serialPoster struct {
	mu sync.Mutex
}

func (p *serialPoster) post(fn func()) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
	return true
}

func (p *serialPoster) do(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

func TestQueue_DebounceCollapsesBurst(t *testing.T) {
	st := newRecordingStorage()
	p := &serialPoster{}
	q := New(Config{Storage: st, Debounce: 30 * time.Millisecond, Post: p.post})

	for _, v := range []string{"1", "2", "3"} {
		p.do(func() { q.Enqueue(Set("k", Literal(v))) })
		time.Sleep(5 * time.Millisecond)
	}

	sets, _ := st.calls()
	assert.Equal(t, 0, sets, "no flush inside the debounce window")

	require.Eventually(t, func() bool {
		sets, _ := st.calls()
		return sets == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, "3", st.Snapshot()["k"])
	time.Sleep(50 * time.Millisecond)
	sets, _ = st.calls()
	assert.Equal(t, 1, sets, "burst must collapse to one flush")
}

func TestQueue_FlushCancelsTimer(t *testing.T) {
	st := newRecordingStorage()
	p := &serialPoster{}
	q := New(Config{Storage: st, Debounce: 20 * time.Millisecond, Post: p.post})

	p.do(func() {
		q.Enqueue(Set("k", Literal("v")))
		require.NoError(t, q.Flush(context.Background()))
	})

	time.Sleep(50 * time.Millisecond)
	sets, _ := st.calls()
	assert.Equal(t, 1, sets)
}

func TestValue(t *testing.T) {
	v, err := Literal("x").Resolve()
	require.NoError(t, err)
	assert.Equal(t, "x", v)
	assert.False(t, Literal("x").IsDeferred())
	assert.True(t, Deferred(func() (string, error) { return "", nil }).IsDeferred())
	assert.Equal(t, "set", OpSet.String())
	assert.Equal(t, "remove", OpRemove.String())
}
