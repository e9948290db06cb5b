package service

import (
	"context"
	"earninja_backend/internal/util"
	"earninja_backend/pkg/logger"

	"go.uber.org/zap"
)

// Renderer makes sure an interval instance gets its audio, now or eventually.
type Renderer interface {
	Render(ctx context.Context, instanceID uint) error
}

// InlineRenderer renders in the calling goroutine.
type InlineRenderer struct {
	Audio *AudioService
}

func (r *InlineRenderer) Render(ctx context.Context, instanceID uint) error {
	return r.Audio.UpdateIntervalInstanceAudio(ctx, instanceID)
}

// Enqueuer is the producing side of the task queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, args interface{}) (string, error)
}

// RenderTaskArgs is the payload of an update_interval_instance_audio task.
type RenderTaskArgs struct {
	IntervalInstanceID uint `json:"interval_instance_id"`
}

// QueuedRenderer hands the render to a RenderWorker through the queue.
type QueuedRenderer struct {
	Queue Enqueuer
}

func (r *QueuedRenderer) Render(ctx context.Context, instanceID uint) error {
	id, err := r.Queue.Enqueue(ctx, util.TaskUpdateIntervalInstanceAudio, RenderTaskArgs{IntervalInstanceID: instanceID})
	if err != nil {
		return err
	}
	logger.Log.Debug("Queued interval audio render",
		zap.Uint("interval_instance_id", instanceID),
		zap.String("task_id", id))
	return nil
}
