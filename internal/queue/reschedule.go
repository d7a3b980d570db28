package queue

import (
	"context"
	"fmt"

	"github.com/ducdigital/fairy-go/internal/events"
	"github.com/ducdigital/fairy-go/internal/logger"
	"github.com/ducdigital/fairy-go/internal/metrics"
	"github.com/ducdigital/fairy-go/internal/task"
)

// Reschedule implements §4.4: collapse FAILED and the non-head survivors
// of every blocked group back into SOURCE, clearing FAILED, every
// affected QUEUED:g, and BLOCKED, as a single atomic action. Optimistic
// conflicts retry the whole protocol from the start.
func (q *Queue) Reschedule(ctx context.Context) (int, error) {
	for {
		moved, aborted, err := q.rescheduleOnce(ctx)
		if err != nil {
			return 0, err
		}
		if aborted {
			continue
		}
		if moved > 0 {
			metrics.RecordReschedule(q.name, moved)
			q.publish(ctx, events.EventQueueRescheduled, "", map[string]interface{}{"moved": moved})
			logger.WithQueue(q.name).Info().Int("moved", moved).Msg("reschedule ran")
		}
		return moved, nil
	}
}

func (q *Queue) rescheduleOnce(ctx context.Context) (moved int, aborted bool, err error) {
	failedRaw, err := q.store.LRange(ctx, q.failedKey(), 0, -1)
	if err != nil {
		return 0, false, fmt.Errorf("reschedule: read FAILED: %w", err)
	}

	buffer := make([]string, 0, len(failedRaw))
	for _, raw := range failedRaw {
		arr, derr := task.Decode(raw)
		if derr != nil {
			return 0, false, fmt.Errorf("reschedule: decode FAILED record: %w", derr)
		}
		// Strip the trailing (failed_at, errors) positions, restoring
		// [args..., queued_time].
		rest, _ := task.Split(arr, 2)
		restored, eerr := task.Encode(rest)
		if eerr != nil {
			return 0, false, fmt.Errorf("reschedule: re-encode FAILED record: %w", eerr)
		}
		buffer = append(buffer, restored)
	}

	groups, err := q.store.SMembers(ctx, q.blockedKey())
	if err != nil {
		return 0, false, fmt.Errorf("reschedule: read BLOCKED: %w", err)
	}

	groupKeys := make([]string, 0, len(groups))
	for _, g := range groups {
		groupKeys = append(groupKeys, q.queuedKey(g))
		tail, rerr := q.store.LRange(ctx, q.queuedKey(g), 1, -1)
		if rerr != nil {
			return 0, false, fmt.Errorf("reschedule: read QUEUED:%s: %w", g, rerr)
		}
		buffer = append(buffer, tail...)
	}

	watchKeys := append([]string{q.failedKey(), q.blockedKey()}, groupKeys...)
	delKeys := append([]string{q.failedKey(), q.blockedKey()}, groupKeys...)

	aborted, err = q.store.CommitReschedule(ctx, watchKeys, q.sourceKey(), buffer, delKeys)
	if err != nil {
		return 0, false, fmt.Errorf("reschedule: commit: %w", err)
	}
	if aborted {
		return 0, true, nil
	}
	return len(buffer), false, nil
}
