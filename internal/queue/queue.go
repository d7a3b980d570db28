package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/ducdigital/fairy-go/internal/config"
	"github.com/ducdigital/fairy-go/internal/events"
)

const registryKey = "FAIRY:QUEUES"

// Client is the top-level connection: one Store shared across every named
// queue it hands out. This is spec.md §6's "Connection interface".
type Client struct {
	store     Store
	config    config.QueueConfig
	publisher events.Publisher
}

// NewClient wraps an already-connected Store with the default queue
// tunables every Queue inherits unless overridden. publisher may be nil,
// in which case queues operate without publishing lifecycle events.
func NewClient(store Store, cfg config.QueueConfig, publisher events.Publisher) *Client {
	return &Client{store: store, config: cfg, publisher: publisher}
}

// Queue returns a handle bound to name, registering it in the global
// queue registry so Queues(ctx) can enumerate it. name must not contain
// ':', since queue names are interpolated directly into key strings
// (spec.md is silent on this; decided in DESIGN.md).
func (c *Client) Queue(ctx context.Context, name string) (*Queue, error) {
	if name == "" {
		return nil, fmt.Errorf("queue: name must not be empty")
	}
	if strings.Contains(name, ":") {
		return nil, fmt.Errorf("queue: name %q must not contain ':'", name)
	}
	if err := c.store.SAdd(ctx, registryKey, name); err != nil {
		return nil, fmt.Errorf("queue: register %q: %w", name, err)
	}
	return &Queue{name: name, store: c.store, cfg: c.config, publisher: c.publisher}, nil
}

// Queues lists every queue name that has ever been registered via Queue.
func (c *Client) Queues(ctx context.Context) ([]string, error) {
	names, err := c.store.SMembers(ctx, registryKey)
	if err != nil {
		return nil, fmt.Errorf("queue: list registry: %w", err)
	}
	return names, nil
}

// Statistics resolves name through Queue and returns that queue's
// derived statistics.
func (c *Client) Statistics(ctx context.Context, name string) (*Stats, error) {
	q, err := c.Queue(ctx, name)
	if err != nil {
		return nil, err
	}
	return q.Statistics(ctx)
}

// Close releases the underlying store connection.
func (c *Client) Close() error { return c.store.Close() }

// Queue is a handle to one named fair queue: every key it touches is
// scoped under its name, per spec.md §3's key layout.
type Queue struct {
	name      string
	store     Store
	cfg       config.QueueConfig
	publisher events.Publisher
}

// Name returns the queue's name.
func (q *Queue) Name() string { return q.name }

// Publisher returns the event publisher this queue emits lifecycle events
// on, or nil if it was constructed without one. Worker pools use this to
// wire their heartbeat's worker.joined/worker.left events onto the same
// publisher the queue itself publishes task/group events to.
func (q *Queue) Publisher() events.Publisher { return q.publisher }

// WithConfig returns a copy of q with its tunables replaced, letting a
// caller override polling interval, retry delay/limit, or retention sizes
// per queue.
func (q *Queue) WithConfig(cfg config.QueueConfig) *Queue {
	return &Queue{name: q.name, store: q.store, cfg: cfg, publisher: q.publisher}
}

// publish is a best-effort event emission: publishing never fails the
// calling operation, consistent with spec.md §7 treating events as
// ambient observability, not part of the dispatch protocol.
func (q *Queue) publish(ctx context.Context, typ events.EventType, group string, extra map[string]interface{}) {
	if q.publisher == nil {
		return
	}
	evt := events.NewEvent(typ, events.TaskEventData(q.name, group, extra))
	_ = q.publisher.Publish(ctx, evt)
}

func (q *Queue) sourceKey() string { return fmt.Sprintf("FAIRY:SOURCE:%s", q.name) }
func (q *Queue) queuedKey(group string) string {
	return fmt.Sprintf("FAIRY:QUEUED:%s:%s", q.name, group)
}
func (q *Queue) processingKey() string { return fmt.Sprintf("FAIRY:PROCESSING:%s", q.name) }
func (q *Queue) failedKey() string     { return fmt.Sprintf("FAIRY:FAILED:%s", q.name) }
func (q *Queue) blockedKey() string    { return fmt.Sprintf("FAIRY:BLOCKED:%s", q.name) }
func (q *Queue) recentKey() string     { return fmt.Sprintf("FAIRY:RECENT:%s", q.name) }
func (q *Queue) slowestKey() string    { return fmt.Sprintf("FAIRY:SLOWEST:%s", q.name) }
func (q *Queue) statisticsKey() string { return fmt.Sprintf("FAIRY:STATISTICS:%s", q.name) }
