package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Task/dispatch metrics
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_tasks_enqueued_total",
			Help: "Total number of tasks enqueued",
		},
		[]string{"queue"},
	)

	TasksDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_tasks_dispatched_total",
			Help: "Total number of tasks promoted from SOURCE to a group's QUEUED list",
		},
		[]string{"queue"},
	)

	TasksCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_tasks_completed_total",
			Help: "Total number of tasks completed",
		},
		[]string{"queue", "status"},
	)

	TaskProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairy_task_processing_duration_seconds",
			Help:    "Task handler execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"queue"},
	)

	TaskRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_task_retries_total",
			Help: "Total number of task retries",
		},
		[]string{"queue"},
	)

	// Queue/group metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fairy_queue_source_depth",
			Help: "Current length of a queue's SOURCE list",
		},
		[]string{"queue"},
	)

	GroupDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fairy_group_depth",
			Help: "Current length of a group's QUEUED list",
		},
		[]string{"queue", "group"},
	)

	QueueLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairy_queue_pending_seconds",
			Help:    "Time a task spent in queue before its first dispatch attempt",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"queue"},
	)

	// Failure/reschedule metrics
	GroupsBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_groups_blocked_total",
			Help: "Total number of groups blocked by a head-of-line failure",
		},
		[]string{"queue"},
	)

	TasksArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_tasks_archived_total",
			Help: "Total number of tasks archived to FAILED",
		},
		[]string{"queue"},
	)

	ReschedulesRun = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_reschedules_total",
			Help: "Total number of reschedule operations run",
		},
		[]string{"queue"},
	)

	TasksRescheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_tasks_rescheduled_total",
			Help: "Total number of tasks re-ingested into SOURCE by reschedule",
		},
		[]string{"queue"},
	)

	// Worker metrics
	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairy_active_workers",
			Help: "Current number of active workers",
		},
	)

	WorkerBusyTime = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_worker_busy_seconds_total",
			Help: "Total time workers spent processing tasks",
		},
		[]string{"worker_id"},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Redis metrics
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fairy_redis_operation_duration_seconds",
			Help:    "Redis operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
		[]string{"operation"},
	)

	RedisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_redis_errors_total",
			Help: "Total number of Redis errors",
		},
		[]string{"operation"},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairy_websocket_connections",
			Help: "Current number of WebSocket connections",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairy_websocket_messages_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)
)

// RecordTaskEnqueued records a task entering SOURCE.
func RecordTaskEnqueued(queue, group string) {
	TasksEnqueued.WithLabelValues(queue).Inc()
}

// RecordTaskDispatched records a task promoted from SOURCE to QUEUED:g.
func RecordTaskDispatched(queue string) {
	TasksDispatched.WithLabelValues(queue).Inc()
}

// RecordTaskCompletion records a task leaving QUEUED:g, successfully or not.
func RecordTaskCompletion(queue, status string, durationSeconds float64) {
	TasksCompleted.WithLabelValues(queue, status).Inc()
	TaskProcessingDuration.WithLabelValues(queue).Observe(durationSeconds)
}

// RecordTaskRetry records one retry attempt.
func RecordTaskRetry(queue string) {
	TaskRetries.WithLabelValues(queue).Inc()
}

// UpdateQueueDepth sets the SOURCE length gauge.
func UpdateQueueDepth(queue string, depth float64) {
	QueueDepth.WithLabelValues(queue).Set(depth)
}

// UpdateGroupDepth sets a group's QUEUED length gauge.
func UpdateGroupDepth(queue, group string, depth float64) {
	GroupDepth.WithLabelValues(queue, group).Set(depth)
}

// RecordQueueLatency records time spent queued before first dispatch.
func RecordQueueLatency(queue string, latencySeconds float64) {
	QueueLatency.WithLabelValues(queue).Observe(latencySeconds)
}

// RecordGroupBlocked records a group entering BLOCKED.
func RecordGroupBlocked(queue string) {
	GroupsBlocked.WithLabelValues(queue).Inc()
}

// RecordTaskArchived records a task appended to FAILED.
func RecordTaskArchived(queue string) {
	TasksArchived.WithLabelValues(queue).Inc()
}

// RecordReschedule records one reschedule run and how many tasks it moved.
func RecordReschedule(queue string, movedCount int) {
	ReschedulesRun.WithLabelValues(queue).Inc()
	TasksRescheduled.WithLabelValues(queue).Add(float64(movedCount))
}

// SetActiveWorkers sets the active workers gauge
func SetActiveWorkers(count float64) {
	ActiveWorkers.Set(count)
}

// RecordWorkerBusyTime records time spent processing
func RecordWorkerBusyTime(workerID string, duration float64) {
	WorkerBusyTime.WithLabelValues(workerID).Add(duration)
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration)
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation string, duration float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRedisError records a Redis error
func RecordRedisError(operation string) {
	RedisErrors.WithLabelValues(operation).Inc()
}

// SetWebSocketConnections sets the WebSocket connections gauge
func SetWebSocketConnections(count float64) {
	WebSocketConnections.Set(count)
}

// RecordWebSocketMessage records a WebSocket message
func RecordWebSocketMessage(msgType string) {
	WebSocketMessages.WithLabelValues(msgType).Inc()
}
