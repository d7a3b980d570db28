package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	// promauto already registers these; just verify they exist.
	assert.NotNil(t, TasksEnqueued)
	assert.NotNil(t, TasksDispatched)
	assert.NotNil(t, TasksCompleted)
	assert.NotNil(t, TaskProcessingDuration)
	assert.NotNil(t, TaskRetries)

	assert.NotNil(t, QueueDepth)
	assert.NotNil(t, GroupDepth)
	assert.NotNil(t, QueueLatency)

	assert.NotNil(t, GroupsBlocked)
	assert.NotNil(t, TasksArchived)
	assert.NotNil(t, ReschedulesRun)
	assert.NotNil(t, TasksRescheduled)

	assert.NotNil(t, ActiveWorkers)
	assert.NotNil(t, WorkerBusyTime)

	assert.NotNil(t, HTTPRequestDuration)
	assert.NotNil(t, HTTPRequestsTotal)

	assert.NotNil(t, RedisOperationDuration)
	assert.NotNil(t, RedisErrors)

	assert.NotNil(t, WebSocketConnections)
	assert.NotNil(t, WebSocketMessages)
}

func TestRecordTaskEnqueued(t *testing.T) {
	TasksEnqueued.Reset()

	RecordTaskEnqueued("emails", "user-1")
	RecordTaskEnqueued("emails", "user-2")
}

func TestRecordTaskDispatched(t *testing.T) {
	TasksDispatched.Reset()

	RecordTaskDispatched("emails")
	RecordTaskDispatched("emails")
}

func TestRecordTaskCompletion(t *testing.T) {
	TasksCompleted.Reset()
	TaskProcessingDuration.Reset()

	RecordTaskCompletion("emails", "success", 1.5)
	RecordTaskCompletion("emails", "failed", 0.5)
}

func TestRecordTaskRetry(t *testing.T) {
	TaskRetries.Reset()

	RecordTaskRetry("emails")
	RecordTaskRetry("emails")
}

func TestUpdateQueueDepth(t *testing.T) {
	QueueDepth.Reset()

	UpdateQueueDepth("emails", 100)
	UpdateQueueDepth("reports", 50)
}

func TestUpdateGroupDepth(t *testing.T) {
	GroupDepth.Reset()

	UpdateGroupDepth("emails", "user-1", 3)
	UpdateGroupDepth("emails", "user-2", 1)
}

func TestRecordQueueLatency(t *testing.T) {
	QueueLatency.Reset()

	RecordQueueLatency("emails", 0.001)
	RecordQueueLatency("reports", 0.5)
}

func TestRecordGroupBlocked(t *testing.T) {
	GroupsBlocked.Reset()

	RecordGroupBlocked("emails")
}

func TestRecordTaskArchived(t *testing.T) {
	TasksArchived.Reset()

	RecordTaskArchived("emails")
}

func TestRecordReschedule(t *testing.T) {
	ReschedulesRun.Reset()
	TasksRescheduled.Reset()

	RecordReschedule("emails", 3)
}

func TestSetActiveWorkers(t *testing.T) {
	SetActiveWorkers(5)
	SetActiveWorkers(10)
	SetActiveWorkers(0)
}

func TestRecordWorkerBusyTime(t *testing.T) {
	WorkerBusyTime.Reset()

	RecordWorkerBusyTime("worker-1", 10.5)
	RecordWorkerBusyTime("worker-2", 5.0)
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestDuration.Reset()
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("GET", "/api/v1/queues/emails/statistics", "200", 0.05)
	RecordHTTPRequest("POST", "/api/v1/queues/emails/tasks", "201", 0.1)
	RecordHTTPRequest("GET", "/api/v1/queues/emails/failed", "404", 0.01)
}

func TestRecordRedisOperation(t *testing.T) {
	RedisOperationDuration.Reset()

	RecordRedisOperation("rpush", 0.001)
	RecordRedisOperation("watch", 0.005)
}

func TestRecordRedisError(t *testing.T) {
	RedisErrors.Reset()

	RecordRedisError("rpush")
	RecordRedisError("watch")
}

func TestSetWebSocketConnections(t *testing.T) {
	SetWebSocketConnections(0)
	SetWebSocketConnections(10)
	SetWebSocketConnections(5)
}

func TestRecordWebSocketMessage(t *testing.T) {
	WebSocketMessages.Reset()

	RecordWebSocketMessage("task.enqueued")
	RecordWebSocketMessage("task.completed")
	RecordWebSocketMessage("worker.joined")
}
