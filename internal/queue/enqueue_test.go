package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducdigital/fairy-go/internal/config"
	"github.com/ducdigital/fairy-go/internal/queue/queuetest"
	"github.com/ducdigital/fairy-go/internal/task"
)

func newTestQueue(t *testing.T) (*Queue, *queuetest.Store) {
	t.Helper()
	store := queuetest.NewStore()
	client := NewClient(store, config.QueueConfig{RetryLimit: 2}, nil)
	q, err := client.Queue(context.Background(), "emails")
	require.NoError(t, err)
	return q, store
}

func TestEnqueue_AppendsToSourceAndIncrementsTotal(t *testing.T) {
	q, store := newTestQueue(t)

	var callbackErr error
	called := false
	err := q.Enqueue(context.Background(), []interface{}{"user-1", "welcome"}, func(err error) {
		called = true
		callbackErr = err
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, callbackErr)

	raws, err := store.LRange(context.Background(), q.sourceKey(), 0, -1)
	require.NoError(t, err)
	require.Len(t, raws, 1)

	arr, err := task.Decode(raws[0])
	require.NoError(t, err)
	args, tail := task.Split(arr, 1)
	assert.Equal(t, []interface{}{"user-1", "welcome"}, args)
	assert.NotZero(t, tail[0])

	stats, err := store.HGetAll(context.Background(), q.statisticsKey())
	require.NoError(t, err)
	assert.Equal(t, "1", stats["total"])
}

func TestEnqueue_NilCompletionIsOptional(t *testing.T) {
	q, _ := newTestQueue(t)
	err := q.Enqueue(context.Background(), []interface{}{"group-a"}, nil)
	assert.NoError(t, err)
}

func TestQueue_NameValidation(t *testing.T) {
	client := NewClient(queuetest.NewStore(), config.QueueConfig{}, nil)

	_, err := client.Queue(context.Background(), "")
	assert.Error(t, err)

	_, err = client.Queue(context.Background(), "has:colon")
	assert.Error(t, err)

	q, err := client.Queue(context.Background(), "fine")
	require.NoError(t, err)
	assert.Equal(t, "fine", q.Name())
}

func TestClient_Queues_ListsRegistered(t *testing.T) {
	client := NewClient(queuetest.NewStore(), config.QueueConfig{}, nil)
	_, err := client.Queue(context.Background(), "emails")
	require.NoError(t, err)
	_, err = client.Queue(context.Background(), "webhooks")
	require.NoError(t, err)

	names, err := client.Queues(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"emails", "webhooks"}, names)
}
