package service

import (
	"context"
	"earninja_backend/internal/util"
	"earninja_backend/pkg/logger"
	"earninja_backend/pkg/queue"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const dequeueTimeout = 5 * time.Second

// RenderWorker consumes render tasks from the Redis queue.
type RenderWorker struct {
	Queue   *queue.RedisQueue
	Redis   *redis.Client
	Audio   *AudioService
	Workers int
	LockTTL time.Duration

	handlers map[string]func(ctx context.Context, task *queue.Task) error
}

func NewRenderWorker(q *queue.RedisQueue, rdb *redis.Client, audioService *AudioService, workers int, lockTTL time.Duration) *RenderWorker {
	if workers <= 0 {
		workers = 1
	}
	w := &RenderWorker{
		Queue:   q,
		Redis:   rdb,
		Audio:   audioService,
		Workers: workers,
		LockTTL: lockTTL,
	}
	w.handlers = map[string]func(ctx context.Context, task *queue.Task) error{
		util.TaskUpdateIntervalInstanceAudio: w.handleRender,
	}
	return w
}

// Run blocks until ctx is cancelled and all in-flight tasks are done.
// Other worker processes may run against the same queue.
func (w *RenderWorker) Run(ctx context.Context) error {
	if err := w.Queue.Register(ctx); err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}
	defer func() {
		if err := w.Queue.Unregister(context.WithoutCancel(ctx)); err != nil {
			logger.Log.Error("Failed to unregister consumer", zap.Error(err))
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)
		w.heartbeat(ctx)
	}()

	if n, err := w.Queue.Requeue(ctx); err != nil {
		return fmt.Errorf("requeue in-flight tasks: %w", err)
	} else if n > 0 {
		logger.Log.Info("Requeued unfinished tasks", zap.Int("count", n))
	}

	logger.Log.Info("Render worker started",
		zap.String("queue", w.Queue.Name),
		zap.String("consumer", w.Queue.Consumer),
		zap.Int("workers", w.Workers))

	var wg sync.WaitGroup
	for i := 0; i < w.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.loop(ctx, id)
		}(i)
	}
	wg.Wait()
	<-heartbeatDone

	logger.Log.Info("Render worker stopped")
	return nil
}

func (w *RenderWorker) heartbeat(ctx context.Context) {
	interval := w.Queue.HeartbeatTTL / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Queue.Heartbeat(ctx); err != nil && ctx.Err() == nil {
				logger.Log.Warn("Consumer heartbeat failed", zap.Error(err))
			}
		}
	}
}

func (w *RenderWorker) loop(ctx context.Context, id int) {
	for ctx.Err() == nil {
		task, err := w.Queue.Dequeue(ctx, dequeueTimeout)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Error("Dequeue failed", zap.Int("worker", id), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		// finish the current task even while shutting down
		w.Process(context.WithoutCancel(ctx), task)
	}
}

// Process runs one task and acks, retries or dead-letters it.
func (w *RenderWorker) Process(ctx context.Context, task *queue.Task) {
	log := logger.Log.With(
		zap.String("task_id", task.ID),
		zap.String("task", task.Name),
		zap.Int("attempt", task.Attempts+1))

	handler, ok := w.handlers[task.Name]
	if !ok {
		log.Error("Unknown task, moving to dead list")
		if err := w.Queue.Bury(ctx, task); err != nil {
			log.Error("Failed to bury task", zap.Error(err))
		}
		return
	}

	start := time.Now()
	err := handler(ctx, task)
	if err == nil || errors.Is(err, util.ErrIntervalInstanceNotFound) {
		if err != nil {
			log.Warn("Interval instance is gone, dropping task", zap.Error(err))
		}
		if ackErr := w.Queue.Ack(ctx, task); ackErr != nil {
			log.Error("Ack failed", zap.Error(ackErr))
		}
		log.Debug("Task done", zap.Duration("elapsed", time.Since(start)))
		return
	}

	dead, retryErr := w.Queue.Retry(ctx, task)
	if retryErr != nil {
		log.Error("Retry failed", zap.Error(retryErr))
		return
	}
	if dead {
		log.Error("Task failed permanently", zap.Error(err))
	} else {
		log.Warn("Task failed, will retry", zap.Error(err))
	}
}

func (w *RenderWorker) handleRender(ctx context.Context, task *queue.Task) error {
	var args RenderTaskArgs
	if err := task.Decode(&args); err != nil || args.IntervalInstanceID == 0 {
		return fmt.Errorf("%w: bad task args %s", util.ErrIntervalInstanceNotFound, task.Args)
	}

	lockKey := fmt.Sprintf("%s:lock:interval_instance:%d", w.Queue.Name, args.IntervalInstanceID)
	lock, err := queue.TryLock(ctx, w.Redis, lockKey, w.LockTTL)
	if err != nil {
		return err
	}
	if lock == nil {
		// someone else is rendering this instance right now
		logger.Log.Info("Render already in progress, skipping",
			zap.Uint("interval_instance_id", args.IntervalInstanceID))
		return nil
	}
	defer releaseLock(ctx, lock, lockKey)

	return w.Audio.UpdateIntervalInstanceAudio(ctx, args.IntervalInstanceID)
}

// releaseLock only logs: the lock expires after LockTTL anyway.
func releaseLock(ctx context.Context, lock *queue.Lock, key string) {
	if err := lock.Release(ctx); err != nil {
		logger.Log.Warn("Failed to release render lock",
			zap.String("key", key),
			zap.Error(err))
	}
}
