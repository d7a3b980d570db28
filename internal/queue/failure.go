package queue

import (
	"context"
	"fmt"

	"github.com/ducdigital/fairy-go/internal/events"
	"github.com/ducdigital/fairy-go/internal/logger"
	"github.com/ducdigital/fairy-go/internal/metrics"
	"github.com/ducdigital/fairy-go/internal/task"
)

// archive appends [args..., queued_time, now_ms, errors] to FAILED, per
// spec.md §4.3's failure-path "Archive" definition.
func (q *Queue) archive(ctx context.Context, inv *invocation) error {
	errs := inv.errors
	if errs == nil {
		errs = []string{}
	}
	raw, err := task.Encode(inv.args, float64(inv.queuedAt), float64(nowMs()), errs)
	if err != nil {
		return fmt.Errorf("archive: encode FAILED record: %w", err)
	}
	if err := q.store.RPush(ctx, q.failedKey(), raw); err != nil {
		return fmt.Errorf("archive: push FAILED: %w", err)
	}
	metrics.RecordTaskArchived(q.name)
	return nil
}

// archiveAndBlock implements "Archive" + "Mark blocked": the archive
// record is appended to FAILED, the PROCESSING entry is cleared, and the
// group id is added to BLOCKED. The head of QUEUED:g is deliberately left
// in place — reschedule (§4.4) reads QUEUED:g[1..] on the assumption that
// position 0 has already been archived here.
func (q *Queue) archiveAndBlock(ctx context.Context, inv *invocation) error {
	if err := q.archive(ctx, inv); err != nil {
		return err
	}
	if err := q.store.HDel(ctx, q.processingKey(), inv.token); err != nil {
		return fmt.Errorf("mark blocked: clear PROCESSING: %w", err)
	}
	if err := q.store.SAdd(ctx, q.blockedKey(), inv.group); err != nil {
		return fmt.Errorf("mark blocked: add to BLOCKED: %w", err)
	}
	metrics.RecordGroupBlocked(q.name)
	q.publish(ctx, events.EventGroupBlocked, inv.group, map[string]interface{}{"errors": inv.errors})
	logger.WithGroup(q.name, inv.group).Warn().Msg("group blocked")
	return nil
}
