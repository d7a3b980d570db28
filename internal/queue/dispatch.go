package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ducdigital/fairy-go/internal/events"
	"github.com/ducdigital/fairy-go/internal/logger"
	"github.com/ducdigital/fairy-go/internal/metrics"
	"github.com/ducdigital/fairy-go/internal/task"
)

// invocation is the plain task-invocation record spec.md §9 recommends
// carrying explicitly on the worker loop instead of threading state
// through completion closures.
type invocation struct {
	group       string
	args        []interface{}
	queuedAt    int64
	startTime   int64
	token       string
	retriesLeft int
	errors      []string
}

// Group returns the group id this invocation is draining. Exported so a
// worker pool can surface which groups it currently has in flight without
// reaching into the otherwise-private invocation state §9 says a worker
// loop should own.
func (i *invocation) Group() string { return i.group }

// Poll runs §4.2: it blocks (sleeping polling_interval between empty
// reads) until this call promotes a SOURCE head into the tail of its
// group's QUEUED list and observes that promotion made it the sole owner
// of that group's head. It returns nil, ctx.Err() if ctx is canceled
// while waiting.
func (q *Queue) Poll(ctx context.Context) (*invocation, error) {
	log := logger.WithQueue(q.name)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, ok, err := q.store.LIndex(ctx, q.sourceKey(), 0)
		if err != nil {
			return nil, fmt.Errorf("poll: read SOURCE head: %w", err)
		}
		if !ok {
			if err := sleepCtx(ctx, q.pollingInterval()); err != nil {
				return nil, err
			}
			continue
		}

		arr, err := task.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("poll: decode SOURCE head: %w", err)
		}
		args, tail := task.Split(arr, 1)
		queuedAt, err := task.AsInt64(tail[0])
		if err != nil {
			return nil, fmt.Errorf("poll: decode enqueued_at: %w", err)
		}
		group, err := task.GroupKey(args)
		if err != nil {
			return nil, fmt.Errorf("poll: decode group: %w", err)
		}

		newLen, owned, err := q.store.PromoteHead(ctx, q.sourceKey(), q.queuedKey(group), raw)
		if err != nil {
			return nil, fmt.Errorf("poll: promote head: %w", err)
		}
		if !owned {
			// Either the commit aborted (SOURCE mutated concurrently) or
			// the head changed under us. Either way, restart with no sleep.
			continue
		}
		if newLen != 1 {
			// Another worker already owns this group's head.
			continue
		}

		log.Debug().Str("group", group).Msg("dispatched group head")
		metrics.RecordTaskDispatched(q.name)
		q.publish(ctx, events.EventTaskDispatched, group, nil)
		return q.beginNew(ctx, group, args, queuedAt)
	}
}

// beginNew implements the is_new_task branch of §4.3's entry: allocate a
// processing token, store PROCESSING[token], reset retries and errors.
func (q *Queue) beginNew(ctx context.Context, group string, args []interface{}, queuedAt int64) (*invocation, error) {
	token := uuid.NewString()
	start := nowMs()
	raw, err := task.Encode(args, float64(start))
	if err != nil {
		return nil, fmt.Errorf("begin: encode processing value: %w", err)
	}
	if err := q.store.HSet(ctx, q.processingKey(), token, raw); err != nil {
		return nil, fmt.Errorf("begin: store PROCESSING: %w", err)
	}
	return &invocation{
		group:       group,
		args:        args,
		queuedAt:    queuedAt,
		startTime:   start,
		token:       token,
		retriesLeft: q.cfg.RetryLimit,
		errors:      nil,
	}, nil
}

// Run implements §4.3's process/next/failure loop for one dispatched
// invocation, returning only once the group has been drained (its QUEUED
// list is empty) or blocked. The caller then returns to Poll.
func (q *Queue) Run(ctx context.Context, inv *invocation, handler Handler) error {
	log := logger.WithGroup(q.name, inv.group)
	for {
		inv.startTime = nowMs()
		result, herr := safeInvoke(ctx, handler, inv.args)

		if herr == nil {
			next, err := q.succeed(ctx, inv, result)
			if err != nil {
				return err
			}
			if next == nil {
				return nil
			}
			inv = next
			continue
		}

		msg := herr.Message
		inv.errors = append(inv.errors, msg)
		log.Warn().Str("directive", string(herr.Do)).Str("error", msg).Msg("handler failed")

		switch herr.Do {
		case DirectiveBlock:
			if err := q.archiveAndBlock(ctx, inv); err != nil {
				return err
			}
			return nil

		case DirectiveBlockAfterRetry:
			if inv.retriesLeft > 0 {
				inv.retriesLeft--
				metrics.RecordTaskRetry(q.name)
				if err := sleepCtx(ctx, q.cfg.RetryDelay); err != nil {
					return err
				}
				continue
			}
			if err := q.archiveAndBlock(ctx, inv); err != nil {
				return err
			}
			return nil

		default:
			if inv.retriesLeft > 0 {
				inv.retriesLeft--
				metrics.RecordTaskRetry(q.name)
				if err := sleepCtx(ctx, q.cfg.RetryDelay); err != nil {
					return err
				}
				continue
			}
			if err := q.archive(ctx, inv); err != nil {
				return err
			}
			if err := q.store.HDel(ctx, q.processingKey(), inv.token); err != nil {
				return fmt.Errorf("skip: clear PROCESSING: %w", err)
			}
			next, err := q.drainGroup(ctx, inv, true)
			if err != nil {
				return err
			}
			if next == nil {
				return nil
			}
			inv = next
			continue
		}
	}
}

// safeInvoke recovers a handler panic into a HandlerError so a user
// handler can never take down a worker goroutine.
func safeInvoke(ctx context.Context, handler Handler, args []interface{}) (result interface{}, herr *HandlerError) {
	defer func() {
		if r := recover(); r != nil {
			herr = NewHandlerError(fmt.Sprintf("handler panicked: %v", r), "")
		}
	}()
	return handler(ctx, args)
}

// succeed implements the success path (§4.3 "next"): delete the
// PROCESSING entry, then drain the group's completed head.
func (q *Queue) succeed(ctx context.Context, inv *invocation, result interface{}) (*invocation, error) {
	if err := q.store.HDel(ctx, q.processingKey(), inv.token); err != nil {
		return nil, fmt.Errorf("succeed: clear PROCESSING: %w", err)
	}
	_ = result
	return q.drainGroup(ctx, inv, false)
}

// drainGroup pops the completed head of QUEUED:g, peeks its successor,
// and records STATISTICS/RECENT/SLOWEST for the vacated head — spec.md
// §4.3 says this recording step runs for the archive-then-skip failure
// branch too ("the success path runs"), so wasFailure only changes the
// status label on the completion metric/event, not whether recording
// happens. If there is a successor it begins a new invocation for it;
// otherwise it returns nil, signaling the caller to return to Poll.
func (q *Queue) drainGroup(ctx context.Context, inv *invocation, wasFailure bool) (*invocation, error) {
	nextRaw, hasNext, err := q.store.DrainHead(ctx, q.queuedKey(inv.group))
	if err != nil {
		return nil, fmt.Errorf("drain group %s: %w", inv.group, err)
	}

	finish := nowMs()
	if err := q.recordFinish(ctx, inv, finish, wasFailure); err != nil {
		return nil, err
	}

	if !hasNext {
		return nil, nil
	}

	arr, err := task.Decode(nextRaw)
	if err != nil {
		return nil, fmt.Errorf("drain group %s: decode successor: %w", inv.group, err)
	}
	args, tail := task.Split(arr, 1)
	queuedAt, err := task.AsInt64(tail[0])
	if err != nil {
		return nil, fmt.Errorf("drain group %s: decode successor enqueued_at: %w", inv.group, err)
	}
	return q.beginNew(ctx, inv.group, args, queuedAt)
}

// recordFinish updates STATISTICS, RECENT, and SLOWEST for a task that
// just vacated its group's head, per §4.3 step 5.
func (q *Queue) recordFinish(ctx context.Context, inv *invocation, finish int64, wasFailure bool) error {
	if _, err := q.store.HIncrBy(ctx, q.statisticsKey(), "finished", 1); err != nil {
		return fmt.Errorf("record finish: finished counter: %w", err)
	}
	if _, err := q.store.HIncrBy(ctx, q.statisticsKey(), "total_pending_time", inv.startTime-inv.queuedAt); err != nil {
		return fmt.Errorf("record finish: pending time: %w", err)
	}
	if _, err := q.store.HIncrBy(ctx, q.statisticsKey(), "total_processing_time", finish-inv.startTime); err != nil {
		return fmt.Errorf("record finish: processing time: %w", err)
	}

	recentRaw, err := task.Encode(inv.args, float64(finish))
	if err != nil {
		return fmt.Errorf("record finish: encode RECENT entry: %w", err)
	}
	if err := q.store.LPush(ctx, q.recentKey(), recentRaw); err != nil {
		return fmt.Errorf("record finish: push RECENT: %w", err)
	}
	if n, err := q.store.LLen(ctx, q.recentKey()); err == nil && n > q.cfg.RecentSize {
		_, _, _ = q.store.RPop(ctx, q.recentKey())
	}

	slowRaw, err := task.Encode(inv.args)
	if err != nil {
		return fmt.Errorf("record finish: encode SLOWEST entry: %w", err)
	}
	duration := float64(finish - inv.startTime)
	if err := q.store.ZAdd(ctx, q.slowestKey(), duration, slowRaw); err != nil {
		return fmt.Errorf("record finish: zadd SLOWEST: %w", err)
	}
	if n, err := q.store.ZCard(ctx, q.slowestKey()); err == nil && n > q.cfg.SlowestSize {
		if err := q.store.ZRemRangeByRank(ctx, q.slowestKey(), 0, n-q.cfg.SlowestSize-1); err != nil {
			return fmt.Errorf("record finish: trim SLOWEST: %w", err)
		}
	}

	status := "success"
	if wasFailure {
		status = "failed"
	}
	metrics.RecordTaskCompletion(q.name, status, duration/1000.0)
	q.publish(ctx, events.EventTaskCompleted, inv.group, map[string]interface{}{"status": status})
	return nil
}

func (q *Queue) pollingInterval() time.Duration {
	if q.cfg.PollingInterval <= 0 {
		return 5 * time.Millisecond
	}
	return q.cfg.PollingInterval
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
