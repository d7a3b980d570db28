package queue

import (
	"context"
	"time"

	"github.com/ducdigital/fairy-go/internal/events"
	"github.com/ducdigital/fairy-go/internal/logger"
	"github.com/ducdigital/fairy-go/internal/metrics"
	"github.com/ducdigital/fairy-go/internal/task"
)

// CompletionFunc is invoked once after Enqueue's store write is
// acknowledged, mirroring spec.md §4.1's optional completion callback.
type CompletionFunc func(err error)

// Enqueue appends [args..., now_ms] to SOURCE and increments
// STATISTICS.total by one. args[0] is the group id. No validation beyond
// store acceptance, no deduplication; ordering across concurrent enqueues
// is whatever order the store's list append resolves to.
func (q *Queue) Enqueue(ctx context.Context, args []interface{}, done CompletionFunc) error {
	now := nowMs()
	raw, err := task.Encode(args, float64(now))
	if err != nil {
		if done != nil {
			done(err)
		}
		return err
	}

	if err := q.store.RPush(ctx, q.sourceKey(), raw); err != nil {
		if done != nil {
			done(err)
		}
		return err
	}
	if _, err := q.store.HIncrBy(ctx, q.statisticsKey(), "total", 1); err != nil {
		if done != nil {
			done(err)
		}
		return err
	}

	group, gerr := task.GroupKey(args)
	if gerr == nil {
		metrics.RecordTaskEnqueued(q.name, group)
		q.publish(ctx, events.EventTaskEnqueued, group, nil)
	}
	logger.WithQueue(q.name).Debug().Str("group", group).Msg("task enqueued")

	if done != nil {
		done(nil)
	}
	return nil
}

func nowMs() int64 { return time.Now().UnixMilli() }
