package queue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ducdigital/fairy-go/internal/task"
)

// Stats mirrors the STATISTICS hash plus the derived fields §4.5 defines.
type Stats struct {
	Total               int64       `json:"total"`
	Finished            int64       `json:"finished"`
	TotalPendingTime    int64       `json:"total_pending_time"`
	TotalProcessingTime int64       `json:"total_processing_time"`
	AveragePendingTime  interface{} `json:"average_pending_time"`
	AverageProcessingTime interface{} `json:"average_processing_time"`
	FailedTasks         int64       `json:"failed_tasks"`
	BlockedGroups       int64       `json:"blocked_groups"`
	BlockedTasks        int64       `json:"blocked_tasks"`
	PendingTasks        int64       `json:"pending_tasks"`
}

// Statistics composes STATISTICS, |FAILED|, and a per-blocked-group
// QUEUED length read into the derived fields §4.5 specifies.
func (q *Queue) Statistics(ctx context.Context) (*Stats, error) {
	raw, err := q.store.HGetAll(ctx, q.statisticsKey())
	if err != nil {
		return nil, fmt.Errorf("statistics: read STATISTICS: %w", err)
	}
	failedLen, err := q.store.LLen(ctx, q.failedKey())
	if err != nil {
		return nil, fmt.Errorf("statistics: read FAILED length: %w", err)
	}
	groups, err := q.store.SMembers(ctx, q.blockedKey())
	if err != nil {
		return nil, fmt.Errorf("statistics: read BLOCKED: %w", err)
	}

	var blockedTaskTotal int64
	for _, g := range groups {
		n, err := q.store.LLen(ctx, q.queuedKey(g))
		if err != nil {
			return nil, fmt.Errorf("statistics: read QUEUED:%s length: %w", g, err)
		}
		blockedTaskTotal += n
	}
	blockedTasks := blockedTaskTotal - int64(len(groups))

	s := &Stats{
		Total:               parseCounter(raw["total"]),
		Finished:            parseCounter(raw["finished"]),
		TotalPendingTime:    parseCounter(raw["total_pending_time"]),
		TotalProcessingTime: parseCounter(raw["total_processing_time"]),
		FailedTasks:         failedLen,
		BlockedGroups:       int64(len(groups)),
		BlockedTasks:        blockedTasks,
	}
	s.AveragePendingTime = average(s.TotalPendingTime, s.Finished)
	s.AverageProcessingTime = average(s.TotalProcessingTime, s.Finished)
	s.PendingTasks = s.Total - s.Finished - s.BlockedTasks - s.FailedTasks
	return s, nil
}

func parseCounter(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func average(total, count int64) interface{} {
	if count == 0 {
		return "-"
	}
	rounded := float64(total) / float64(count)
	rounded = float64(int64(rounded*100+0.5)) / 100
	return rounded
}

// RecentlyFinishedTasks decodes RECENT in full, most-recently-finished
// first (reverse-chronological, per §3's RECENT contract), as raw
// [args..., finished_at] tuples.
func (q *Queue) RecentlyFinishedTasks(ctx context.Context) ([][]interface{}, error) {
	raws, err := q.store.LRange(ctx, q.recentKey(), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("recently finished: %w", err)
	}
	return decodeAll(raws)
}

// FailedTasks decodes FAILED in full, as raw
// [args..., queued_time, failed_at, errors] tuples.
func (q *Queue) FailedTasks(ctx context.Context) ([][]interface{}, error) {
	raws, err := q.store.LRange(ctx, q.failedKey(), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed tasks: %w", err)
	}
	return decodeAll(raws)
}

// BlockedGroups lists the group ids currently in BLOCKED.
func (q *Queue) BlockedGroups(ctx context.Context) ([]string, error) {
	groups, err := q.store.SMembers(ctx, q.blockedKey())
	if err != nil {
		return nil, fmt.Errorf("blocked groups: %w", err)
	}
	return groups, nil
}

// SlowestEntry pairs a decoded task with its recorded processing duration.
type SlowestEntry struct {
	Args            []interface{} `json:"args"`
	ProcessingMs    float64       `json:"processing_ms"`
}

// SlowestTasks decodes SLOWEST, highest-duration first.
func (q *Queue) SlowestTasks(ctx context.Context) ([]SlowestEntry, error) {
	members, err := q.store.ZRevRange(ctx, q.slowestKey(), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("slowest tasks: %w", err)
	}
	out := make([]SlowestEntry, 0, len(members))
	for _, m := range members {
		arr, err := task.Decode(m.Member)
		if err != nil {
			return nil, fmt.Errorf("slowest tasks: decode: %w", err)
		}
		out = append(out, SlowestEntry{Args: arr, ProcessingMs: m.Score})
	}
	return out, nil
}

// ProcessingEntry pairs a processing token with its in-flight task value.
type ProcessingEntry struct {
	Token string        `json:"token"`
	Args  []interface{} `json:"args"`
}

// ProcessingTasks decodes the PROCESSING hash: every currently in-flight
// task keyed by its processing token.
func (q *Queue) ProcessingTasks(ctx context.Context) ([]ProcessingEntry, error) {
	m, err := q.store.HGetAll(ctx, q.processingKey())
	if err != nil {
		return nil, fmt.Errorf("processing tasks: %w", err)
	}
	out := make([]ProcessingEntry, 0, len(m))
	for token, raw := range m {
		arr, err := task.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("processing tasks: decode: %w", err)
		}
		out = append(out, ProcessingEntry{Token: token, Args: arr})
	}
	return out, nil
}

func decodeAll(raws []string) ([][]interface{}, error) {
	out := make([][]interface{}, 0, len(raws))
	for _, raw := range raws {
		arr, err := task.Decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, arr)
	}
	return out, nil
}
