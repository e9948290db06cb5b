package service

import (
	"context"
	"earninja_backend/internal/audio"
	"earninja_backend/internal/model"
	"earninja_backend/internal/util"
	"earninja_backend/pkg/logger"
	"earninja_backend/pkg/queue"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })
	return logs
}

func newTestWorker(t *testing.T, env *testEnv, maxAttempts int) *RenderWorker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	q := queue.NewRedisQueue(rdb, "test:tasks", maxAttempts)
	return NewRenderWorker(q, rdb, env.Audio, 2, time.Minute)
}

func dequeue(t *testing.T, w *RenderWorker) *queue.Task {
	t.Helper()
	task, err := w.Queue.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	return task
}

func TestQueuedRendererAndWorker(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	w := newTestWorker(t, env, 3)
	instance := newInstance(t, env, 45, "5", model.MelodicAscending)

	renderer := &QueuedRenderer{Queue: w.Queue}
	require.NoError(t, renderer.Render(ctx, instance.ID))

	task := dequeue(t, w)
	assert.Equal(t, util.TaskUpdateIntervalInstanceAudio, task.Name)
	w.Process(ctx, task)

	loaded, err := env.Intervals.FindInstanceByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, audio.InstanceAudioPath(instance.ID), loaded.Audio)

	pending, err := w.Queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.Synth.err = audio.ErrSynthesizerFailed
	w := newTestWorker(t, env, 2)
	instance := newInstance(t, env, 45, "b3", model.Harmonic)

	require.NoError(t, (&QueuedRenderer{Queue: w.Queue}).Render(ctx, instance.ID))

	w.Process(ctx, dequeue(t, w))
	pending, err := w.Queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending, "first failure is retried")

	w.Process(ctx, dequeue(t, w))
	pending, err = w.Queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	dead, err := w.Queue.DeadLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
	assert.Equal(t, 2, env.Synth.calls)
}

func TestWorkerDropsMissingInstance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	w := newTestWorker(t, env, 3)

	_, err := w.Queue.Enqueue(ctx, util.TaskUpdateIntervalInstanceAudio, RenderTaskArgs{IntervalInstanceID: 999})
	require.NoError(t, err)
	w.Process(ctx, dequeue(t, w))

	pending, err := w.Queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	dead, err := w.Queue.DeadLen(ctx)
	require.NoError(t, err)
	assert.Zero(t, dead)
}

func TestWorkerSkipsLockedInstance(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	w := newTestWorker(t, env, 3)
	instance := newInstance(t, env, 45, "1", model.Harmonic)

	lock, err := queue.TryLock(ctx, w.Redis, "test:tasks:lock:interval_instance:"+uintString(instance.ID), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lock)

	require.NoError(t, (&QueuedRenderer{Queue: w.Queue}).Render(ctx, instance.ID))
	w.Process(ctx, dequeue(t, w))
	assert.Zero(t, env.Synth.calls)

	pending, err := w.Queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestWorkerBuriesUnknownTask(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	w := newTestWorker(t, env, 3)

	_, err := w.Queue.Enqueue(ctx, "send_newsletter", nil)
	require.NoError(t, err)
	w.Process(ctx, dequeue(t, w))

	dead, err := w.Queue.DeadLen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}

func TestWorkerRunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWorker(t, env, 3)
	instance := newInstance(t, env, 60, "5", model.Harmonic)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, (&QueuedRenderer{Queue: w.Queue}).Render(context.Background(), instance.ID))
	require.Eventually(t, func() bool {
		loaded, err := env.Intervals.FindInstanceByID(context.Background(), instance.ID)
		return err == nil && loaded.HasAudio()
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("worker did not stop")
	}

	consumers, err := w.Redis.SMembers(context.Background(), "test:tasks:consumers").Result()
	require.NoError(t, err)
	assert.Empty(t, consumers)
}

func TestWorkerLogsFailedLockRelease(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	logs := observeLogs(t)

	lock, err := queue.TryLock(ctx, rdb, "test:tasks:lock:interval_instance:9", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lock)

	mr.Close()
	releaseLock(ctx, lock, "test:tasks:lock:interval_instance:9")

	entries := logs.FilterMessage("Failed to release render lock").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "test:tasks:lock:interval_instance:9", entries[0].ContextMap()["key"])
}

func TestWorkerLogsUnreadablePayload(t *testing.T) {
	env := newTestEnv(t)
	w := newTestWorker(t, env, 3)
	logs := observeLogs(t)
	require.NoError(t, w.Redis.LPush(context.Background(), "test:tasks", "{not json").Err())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("Dequeue failed").Len() > 0
	}, 10*time.Second, 50*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	dead, err := w.Queue.DeadLen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), dead)
}
