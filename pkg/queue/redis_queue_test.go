package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, maxAttempts int) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisQueue(client, "test:tasks", maxAttempts), mr
}

type renderArgs struct {
	IntervalInstanceID uint `json:"interval_instance_id"`
}

func TestEnqueueDequeueAck(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	id1, err := q.Enqueue(ctx, "update_interval_instance_audio", renderArgs{IntervalInstanceID: 1})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "update_interval_instance_audio", renderArgs{IntervalInstanceID: 2})
	require.NoError(t, err)

	task, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, id1, task.ID)
	assert.Equal(t, "update_interval_instance_audio", task.Name)

	var args renderArgs
	require.NoError(t, task.Decode(&args))
	assert.Equal(t, uint(1), args.IntervalInstanceID)

	processing, err := q.Client.LLen(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), processing)

	require.NoError(t, q.Ack(ctx, task))
	processing, err = q.Client.LLen(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Zero(t, processing)

	pending, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestDequeueEmpty(t *testing.T) {
	q, _ := newTestQueue(t, 3)
	_, err := q.Dequeue(context.Background(), 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestRetryDeadLetters(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 2)

	_, err := q.Enqueue(ctx, "update_interval_instance_audio", renderArgs{IntervalInstanceID: 7})
	require.NoError(t, err)

	task, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	dead, err := q.Retry(ctx, task)
	require.NoError(t, err)
	assert.False(t, dead)

	task, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempts)
	dead, err = q.Retry(ctx, task)
	require.NoError(t, err)
	assert.True(t, dead)

	pending, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	deadCount, err := q.DeadLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deadCount)
}

func TestBury(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	_, err := q.Enqueue(ctx, "unknown_task", nil)
	require.NoError(t, err)
	task, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Bury(ctx, task))

	deadCount, err := q.DeadLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deadCount)
	processing, err := q.Client.LLen(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestRequeueRestoresInFlightTasks(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)

	_, err := q.Enqueue(ctx, "update_interval_instance_audio", renderArgs{IntervalInstanceID: 3})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	n, err := q.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestRequeueLeavesLiveConsumersAlone(t *testing.T) {
	ctx := context.Background()
	busy, mr := newTestQueue(t, 3)
	require.NoError(t, busy.Register(ctx))

	_, err := busy.Enqueue(ctx, "update_interval_instance_audio", renderArgs{IntervalInstanceID: 4})
	require.NoError(t, err)
	inFlight, err := busy.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	// a second worker process starting up
	starting := NewRedisQueue(busy.Client, busy.Name, 3)
	require.NoError(t, starting.Register(ctx))
	n, err := starting.Requeue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	processing, err := busy.Client.LLen(ctx, busy.processingKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), processing)
	require.NoError(t, busy.Ack(ctx, inFlight))

	pending, err := starting.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.True(t, mr.Exists(busy.heartbeatKey(busy.Consumer)))
}

func TestRequeueRecoversCrashedConsumer(t *testing.T) {
	ctx := context.Background()
	crashed, mr := newTestQueue(t, 3)
	crashed.HeartbeatTTL = 10 * time.Second
	require.NoError(t, crashed.Register(ctx))

	_, err := crashed.Enqueue(ctx, "update_interval_instance_audio", renderArgs{IntervalInstanceID: 5})
	require.NoError(t, err)
	_, err = crashed.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	// no heartbeat arrives, the key expires
	mr.FastForward(11 * time.Second)

	survivor := NewRedisQueue(crashed.Client, crashed.Name, 3)
	require.NoError(t, survivor.Register(ctx))
	n, err := survivor.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	task, err := survivor.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	var args renderArgs
	require.NoError(t, task.Decode(&args))
	assert.Equal(t, uint(5), args.IntervalInstanceID)

	consumers, err := survivor.Client.SMembers(ctx, survivor.consumersKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{survivor.Consumer}, consumers)
}

func TestHeartbeatKeepsConsumerAlive(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t, 3)
	q.HeartbeatTTL = 10 * time.Second
	require.NoError(t, q.Register(ctx))

	mr.FastForward(8 * time.Second)
	require.NoError(t, q.Heartbeat(ctx))
	mr.FastForward(8 * time.Second)
	assert.True(t, mr.Exists(q.heartbeatKey(q.Consumer)))
}

func TestUnregisterReturnsInFlightTasks(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t, 3)
	require.NoError(t, q.Register(ctx))

	_, err := q.Enqueue(ctx, "update_interval_instance_audio", renderArgs{IntervalInstanceID: 6})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	require.NoError(t, q.Unregister(ctx))
	pending, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
	assert.False(t, mr.Exists(q.heartbeatKey(q.Consumer)))

	isMember, err := q.Client.SIsMember(ctx, q.consumersKey(), q.Consumer).Result()
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestDequeueParksUnreadablePayload(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t, 3)
	require.NoError(t, q.Client.LPush(ctx, q.Name, "{not json").Err())

	_, err := q.Dequeue(ctx, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode task")

	dead, err := q.Client.LRange(ctx, q.deadKey(), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"{not json"}, dead)
	processing, err := q.Client.LLen(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestTryLock(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t, 3)

	lock, err := TryLock(ctx, q.Client, "lock:instance:1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lock)

	other, err := TryLock(ctx, q.Client, "lock:instance:1", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, lock.Release(ctx))
	again, err := TryLock(ctx, q.Client, "lock:instance:1", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, again)

	// expired locks free the key
	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("lock:instance:1"))
}
