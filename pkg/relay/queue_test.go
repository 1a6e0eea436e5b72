package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue() *Queue {
	return New(Options{
		Timeout:      500 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,
	})
}

func TestQueue_EnqueueIDsIncrease(t *testing.T) {
	q := newTestQueue()

	var ids []int64
	for i := 0; i < 10; i++ {
		ids = append(ids, q.Enqueue("run_script", map[string]interface{}{"code": "return 1"}))
	}

	seen := make(map[int64]bool)
	for i, id := range ids {
		assert.False(t, seen[id], "id %d returned twice", id)
		seen[id] = true
		if i > 0 {
			assert.Greater(t, id, ids[i-1])
		}
	}
	assert.Equal(t, 10, q.Len())
}

func TestQueue_ClaimPendingExactlyOnce(t *testing.T) {
	q := newTestQueue()

	id1 := q.Enqueue("run_script", map[string]interface{}{"code": "a"})
	id2 := q.Enqueue("get_script", map[string]interface{}{"path": "game.X"})

	claimed := q.ClaimPending()
	require.Len(t, claimed, 2)
	assert.Equal(t, id1, claimed[0].ID)
	assert.Equal(t, "run_script", claimed[0].Tool)
	assert.Equal(t, id2, claimed[1].ID)
	assert.Equal(t, "get_script", claimed[1].Tool)

	// Already-sent records are never returned twice
	assert.Empty(t, q.ClaimPending())

	// A record enqueued afterwards shows up in the next claim only
	id3 := q.Enqueue("delete_instance", map[string]interface{}{"path": "game.Y"})
	claimed = q.ClaimPending()
	require.Len(t, claimed, 1)
	assert.Equal(t, id3, claimed[0].ID)
}

func TestQueue_ClaimPendingCreationOrder(t *testing.T) {
	q := newTestQueue()

	for i := 0; i < 5; i++ {
		q.Enqueue("run_script", map[string]interface{}{"seq": i})
	}

	claimed := q.ClaimPending()
	require.Len(t, claimed, 5)
	for i := 1; i < len(claimed); i++ {
		assert.Greater(t, claimed[i].ID, claimed[i-1].ID)
	}
}

func TestQueue_ResolveRoutesToWaiter(t *testing.T) {
	q := newTestQueue()

	id := q.Enqueue("run_script", map[string]interface{}{"code": "return 1+1"})

	go func() {
		time.Sleep(50 * time.Millisecond)
		q.ClaimPending()
		q.Resolve(id, Outcome{Result: map[string]interface{}{"output": "2"}})
	}()

	result, err := q.Await(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Equal(t, "2", result["output"])
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ResolveWithErrorFailsAwait(t *testing.T) {
	q := newTestQueue()

	id := q.Enqueue("run_script", map[string]interface{}{"code": "error('boom')"})

	go func() {
		time.Sleep(50 * time.Millisecond)
		q.Resolve(id, Outcome{Err: "boom"})
	}()

	_, err := q.Await(context.Background(), id, 0)
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "boom", execErr.Message)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_AwaitTimeout(t *testing.T) {
	q := newTestQueue()

	id := q.Enqueue("run_script", map[string]interface{}{"code": "return 1"})

	start := time.Now()
	_, err := q.Await(context.Background(), id, 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	// No earlier than the timeout, no later than timeout plus one poll
	// interval with some scheduling slack.
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ResolveUnknownIDIsNoOp(t *testing.T) {
	q := newTestQueue()

	assert.False(t, q.Resolve(999, Outcome{Result: map[string]interface{}{"late": true}}))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ResolveAfterTimeoutIsDiscarded(t *testing.T) {
	q := newTestQueue()

	id := q.Enqueue("run_script", map[string]interface{}{"code": "return 1"})

	_, err := q.Await(context.Background(), id, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)

	// The orphaned completion is accepted and silently dropped
	assert.False(t, q.Resolve(id, Outcome{Result: map[string]interface{}{"output": "late"}}))
	assert.Equal(t, 0, q.Len())
}

func TestQueue_DuplicateResolveKeepsFirstOutcome(t *testing.T) {
	q := newTestQueue()

	id := q.Enqueue("run_script", map[string]interface{}{"code": "return 1"})
	assert.True(t, q.Resolve(id, Outcome{Result: map[string]interface{}{"output": "first"}}))
	assert.False(t, q.Resolve(id, Outcome{Result: map[string]interface{}{"output": "second"}}))

	result, err := q.Await(context.Background(), id, 0)
	require.NoError(t, err)
	assert.Equal(t, "first", result["output"])
}

func TestQueue_ConcurrentAwaitsResolveOutOfOrder(t *testing.T) {
	q := newTestQueue()

	id1 := q.Enqueue("run_script", map[string]interface{}{"code": "a"})
	id2 := q.Enqueue("run_script", map[string]interface{}{"code": "b"})

	var wg sync.WaitGroup
	results := make(map[int64]string)
	var mu sync.Mutex

	for _, id := range []int64{id1, id2} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := q.Await(context.Background(), id, 0)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			results[id], _ = result["output"].(string)
			mu.Unlock()
		}()
	}

	time.Sleep(50 * time.Millisecond)
	claimed := q.ClaimPending()
	require.Len(t, claimed, 2)
	assert.Equal(t, id1, claimed[0].ID)
	assert.Equal(t, id2, claimed[1].ID)

	// Resolving in reverse order still routes each outcome to its caller
	q.Resolve(id2, Outcome{Result: map[string]interface{}{"output": "result-2"}})
	q.Resolve(id1, Outcome{Result: map[string]interface{}{"output": "result-1"}})

	wg.Wait()
	assert.Equal(t, "result-1", results[id1])
	assert.Equal(t, "result-2", results[id2])
	assert.Equal(t, 0, q.Len())
}

func TestQueue_ConcurrentEnqueueDuringClaim(t *testing.T) {
	q := newTestQueue()

	var wg sync.WaitGroup
	const n = 50

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Enqueue("run_script", map[string]interface{}{"seq": i})
		}
	}()

	seen := make(map[int64]int)
	var seenMu sync.Mutex
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for _, d := range q.ClaimPending() {
				seenMu.Lock()
				seen[d.ID]++
				seenMu.Unlock()
			}
		}
	}()

	wg.Wait()

	// Sweep up anything enqueued after the claimer finished
	for _, d := range q.ClaimPending() {
		seen[d.ID]++
	}

	assert.Len(t, seen, n)
	for id, count := range seen {
		assert.Equal(t, 1, count, "command %d claimed %d times", id, count)
	}
}

func TestQueue_AwaitCancelledContext(t *testing.T) {
	q := newTestQueue()

	id := q.Enqueue("run_script", map[string]interface{}{"code": "return 1"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := q.Await(ctx, id, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_AwaitUnknownID(t *testing.T) {
	q := newTestQueue()

	_, err := q.Await(context.Background(), 42, 0)
	assert.ErrorIs(t, err, ErrVanished)
}

func TestQueue_DefaultOptions(t *testing.T) {
	q := New(Options{})

	assert.Equal(t, DefaultTimeout, q.Timeout())
	assert.Equal(t, DefaultPollInterval, q.pollInterval)
}
