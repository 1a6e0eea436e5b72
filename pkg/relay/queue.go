package relay

import (
	"context"
	"sync"
	"time"

	"github.com/harun/studiobridge/internal/observability"
	"github.com/harun/studiobridge/internal/tracing"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// DefaultTimeout is how long an await waits for the plugin before failing
	DefaultTimeout = 30 * time.Second
	// DefaultPollInterval bounds the added latency of the await re-check loop
	DefaultPollInterval = 200 * time.Millisecond
)

// Options configures a relay queue
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// Queue owns the live set of command records and the call/await bridge.
// All access to the live set is serialized by a single mutex; Await blocks
// only its own goroutine.
type Queue struct {
	mu           sync.Mutex
	records      map[int64]*command
	order        []int64 // insertion order = dispatch priority
	idSeq        int64
	timeout      time.Duration
	pollInterval time.Duration
}

// New creates an empty relay queue
func New(opts Options) *Queue {
	observability.EnsureRegistered()

	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	return &Queue{
		records:      make(map[int64]*command),
		order:        make([]int64, 0),
		timeout:      opts.Timeout,
		pollInterval: opts.PollInterval,
	}
}

// Enqueue creates a pending command record and returns its id. It never fails.
func (q *Queue) Enqueue(tool string, args map[string]interface{}) int64 {
	q.mu.Lock()
	q.idSeq++
	id := q.idSeq
	rec := &command{
		id:         id,
		tool:       tool,
		args:       args,
		status:     StatusPending,
		enqueuedAt: time.Now(),
		done:       make(chan struct{}),
	}
	q.records[id] = rec
	q.order = append(q.order, id)
	size := len(q.records)
	q.mu.Unlock()

	observability.RecordEnqueue(tool, size)

	log.Debug().
		Int64("commandId", id).
		Str("tool", tool).
		Int("queueSize", size).
		Msg("Command enqueued")

	return id
}

// ClaimPending atomically marks every pending command as sent and returns
// them in creation order. Records already sent or done are excluded, so a
// command is handed to the plugin at most once.
func (q *Queue) ClaimPending() []Dispatch {
	q.mu.Lock()
	claimed := make([]Dispatch, 0)
	for _, id := range q.order {
		rec, ok := q.records[id]
		if !ok || rec.status != StatusPending {
			continue
		}
		rec.status = StatusSent
		claimed = append(claimed, Dispatch{ID: rec.id, Tool: rec.tool, Args: rec.args})
	}
	q.mu.Unlock()

	if len(claimed) > 0 {
		observability.RecordClaim(len(claimed))
		log.Debug().
			Int("claimed", len(claimed)).
			Msg("Pending commands claimed for dispatch")
	}

	return claimed
}

// Resolve attaches an outcome to a live command and wakes its waiter. It
// reports whether the outcome reached a waiter. Only the first resolve for an
// id has effect; a resolve for an unknown or already-removed id is discarded
// without error, because the plugin may post a completion for a command whose
// caller already timed out.
func (q *Queue) Resolve(id int64, outcome Outcome) bool {
	q.mu.Lock()
	rec, ok := q.records[id]
	if !ok {
		q.mu.Unlock()
		observability.RecordResolve("orphaned")
		log.Debug().
			Int64("commandId", id).
			Msg("Discarding completion for unknown or removed command")
		return false
	}
	if rec.status == StatusDone {
		q.mu.Unlock()
		observability.RecordResolve("duplicate")
		log.Debug().
			Int64("commandId", id).
			Msg("Ignoring duplicate completion")
		return false
	}
	rec.outcome = outcome
	rec.status = StatusDone
	close(rec.done)
	q.mu.Unlock()

	status := "success"
	if outcome.Err != "" {
		status = "error"
	}
	observability.RecordResolve(status)

	log.Debug().
		Int64("commandId", id).
		Str("status", status).
		Msg("Command resolved")
	return true
}

// Await blocks until the command resolves, the timeout elapses, or the
// record vanishes. A timeout of zero uses the queue default. The record is
// removed from the live set on every exit path, so ids observe exactly one
// terminal state.
func (q *Queue) Await(ctx context.Context, id int64, timeout time.Duration) (map[string]interface{}, error) {
	if timeout <= 0 {
		timeout = q.timeout
	}

	ctx, span := tracing.StartSpan(
		ctx,
		"studiobridge.relay",
		"relay.await",
		attribute.Int64("command_id", id),
	)
	defer span.End()

	ctx = tracing.WithCommandID(ctx, id)
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	q.mu.Lock()
	rec, ok := q.records[id]
	q.mu.Unlock()
	if !ok {
		span.RecordError(ErrVanished)
		span.SetStatus(codes.Error, ErrVanished.Error())
		return nil, ErrVanished
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rec.done:
			return q.takeOutcome(id, rec, logger)

		case <-ticker.C:
			// Periodic re-check; catches a record that left the live set
			// without resolving.
			q.mu.Lock()
			cur, live := q.records[id]
			q.mu.Unlock()
			if !live || cur != rec {
				logger.Error().Msg("Command vanished while awaited")
				span.RecordError(ErrVanished)
				span.SetStatus(codes.Error, ErrVanished.Error())
				return nil, ErrVanished
			}

		case <-timer.C:
			// A resolution that lost the race to the timer still wins.
			select {
			case <-rec.done:
				return q.takeOutcome(id, rec, logger)
			default:
			}
			q.remove(id)
			observability.RecordAwaitTimeout(rec.tool, q.Len())
			observability.RecordRelayAudit(ctx, "command_timeout", "timeout", map[string]interface{}{
				"command_id": id,
				"tool":       rec.tool,
				"timeout_ms": timeout.Milliseconds(),
			})
			logger.Warn().
				Str("tool", rec.tool).
				Dur("timeout", timeout).
				Msg("Command timed out awaiting plugin completion")
			span.RecordError(ErrTimeout)
			span.SetStatus(codes.Error, ErrTimeout.Error())
			return nil, ErrTimeout

		case <-ctx.Done():
			q.remove(id)
			observability.SetQueueSize(q.Len())
			logger.Warn().Msg("Await cancelled by caller")
			return nil, ctx.Err()
		}
	}
}

// takeOutcome removes a resolved record and maps its outcome to the caller
func (q *Queue) takeOutcome(id int64, rec *command, logger zerolog.Logger) (map[string]interface{}, error) {
	q.mu.Lock()
	outcome := rec.outcome
	delete(q.records, id)
	q.dropOrderLocked(id)
	size := len(q.records)
	q.mu.Unlock()

	observability.SetQueueSize(size)

	if outcome.Err != "" {
		logger.Debug().Str("error", outcome.Err).Msg("Command completed with plugin-reported error")
		return nil, &ExecutionError{Message: outcome.Err}
	}

	logger.Debug().Msg("Command completed")
	return outcome.Result, nil
}

// remove deletes a record regardless of its state
func (q *Queue) remove(id int64) {
	q.mu.Lock()
	delete(q.records, id)
	q.dropOrderLocked(id)
	q.mu.Unlock()
}

// dropOrderLocked removes an id from the dispatch order. Caller holds q.mu.
func (q *Queue) dropOrderLocked(id int64) {
	for i, candidate := range q.order {
		if candidate == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}

// Len returns the number of live command records
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Timeout returns the default await timeout
func (q *Queue) Timeout() time.Duration {
	return q.timeout
}
