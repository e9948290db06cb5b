// Package queue is a small at-least-once task queue on Redis lists.
//
// Pending tasks live in <name>. Each consumer moves a task atomically into
// its own <name>:processing:<consumer> list and removes it again with Ack.
// Consumers are listed in <name>:consumers and keep <name>:consumer:<id>
// alive while they run; Requeue only recovers the lists of consumers whose
// heartbeat expired. Tasks that keep failing end up in <name>:dead.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrEmpty = errors.New("queue: no task available")

type Task struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`

	// exact payload popped from Redis, needed to LREM it on Ack
	raw string
}

// Decode unmarshals the task arguments into v.
func (t *Task) Decode(v interface{}) error {
	return json.Unmarshal(t.Args, v)
}

const DefaultHeartbeatTTL = 30 * time.Second

type RedisQueue struct {
	Client      *redis.Client
	Name        string
	MaxAttempts int
	// Consumer names this process's processing list, unique per process
	Consumer     string
	HeartbeatTTL time.Duration
}

func NewRedisQueue(client *redis.Client, name string, maxAttempts int) *RedisQueue {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &RedisQueue{
		Client:       client,
		Name:         name,
		MaxAttempts:  maxAttempts,
		Consumer:     uuid.NewString(),
		HeartbeatTTL: DefaultHeartbeatTTL,
	}
}

func (q *RedisQueue) processingKey() string { return q.processingKeyOf(q.Consumer) }
func (q *RedisQueue) deadKey() string       { return q.Name + ":dead" }
func (q *RedisQueue) consumersKey() string  { return q.Name + ":consumers" }

func (q *RedisQueue) processingKeyOf(consumer string) string {
	return q.Name + ":processing:" + consumer
}

func (q *RedisQueue) heartbeatKey(consumer string) string {
	return q.Name + ":consumer:" + consumer
}

// Enqueue pushes a new task and returns its id.
func (q *RedisQueue) Enqueue(ctx context.Context, name string, args interface{}) (string, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("queue: encode args: %w", err)
	}
	task := &Task{
		ID:         uuid.NewString(),
		Name:       name,
		Args:       payload,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := q.push(ctx, q.Name, task); err != nil {
		return "", err
	}
	return task.ID, nil
}

func (q *RedisQueue) push(ctx context.Context, key string, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: encode task: %w", err)
	}
	return q.Client.LPush(ctx, key, data).Err()
}

// Dequeue blocks up to timeout for the oldest task. It returns ErrEmpty
// when nothing arrived in time.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	raw, err := q.Client.BRPopLPush(ctx, q.Name, q.processingKey(), timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal([]byte(raw), &task); err != nil {
		err = fmt.Errorf("queue: decode task: %w", err)
		// unreadable payloads would loop forever, park them
		if _, parkErr := q.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.processingKey(), 1, raw)
			pipe.LPush(ctx, q.deadKey(), raw)
			return nil
		}); parkErr != nil {
			err = errors.Join(err, fmt.Errorf("queue: park unreadable task: %w", parkErr))
		}
		return nil, err
	}
	task.raw = raw
	return &task, nil
}

// Ack removes a finished task from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, task *Task) error {
	return q.Client.LRem(ctx, q.processingKey(), 1, task.raw).Err()
}

// Retry re-queues a failed task, or moves it to the dead list once it has
// used up MaxAttempts. The returned bool is true when the task was dropped.
func (q *RedisQueue) Retry(ctx context.Context, task *Task) (bool, error) {
	retried := *task
	retried.Attempts++
	dead := retried.Attempts >= q.MaxAttempts

	target := q.Name
	if dead {
		target = q.deadKey()
	}

	data, err := json.Marshal(&retried)
	if err != nil {
		return false, fmt.Errorf("queue: encode task: %w", err)
	}

	_, err = q.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, task.raw)
		pipe.LPush(ctx, target, data)
		return nil
	})
	return dead, err
}

// Bury moves a task straight to the dead list, for tasks that can never succeed.
func (q *RedisQueue) Bury(ctx context.Context, task *Task) error {
	_, err := q.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.processingKey(), 1, task.raw)
		pipe.LPush(ctx, q.deadKey(), task.raw)
		return nil
	})
	return err
}

// Register announces this consumer and starts its heartbeat.
func (q *RedisQueue) Register(ctx context.Context) error {
	_, err := q.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, q.consumersKey(), q.Consumer)
		pipe.Set(ctx, q.heartbeatKey(q.Consumer), time.Now().UTC().Format(time.RFC3339), q.HeartbeatTTL)
		return nil
	})
	return err
}

// Heartbeat extends this consumer's liveness by HeartbeatTTL. Call it more
// often than HeartbeatTTL.
func (q *RedisQueue) Heartbeat(ctx context.Context) error {
	return q.Client.Set(ctx, q.heartbeatKey(q.Consumer), time.Now().UTC().Format(time.RFC3339), q.HeartbeatTTL).Err()
}

// Unregister removes this consumer. Tasks still in its processing list are
// moved back to pending first.
func (q *RedisQueue) Unregister(ctx context.Context) error {
	if _, err := q.drain(ctx, q.Consumer); err != nil {
		return err
	}
	_, err := q.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, q.consumersKey(), q.Consumer)
		pipe.Del(ctx, q.heartbeatKey(q.Consumer))
		return nil
	})
	return err
}

// Requeue moves the in-flight tasks of this consumer and of every consumer
// whose heartbeat expired back to pending. Lists of live consumers are left
// alone, so it is safe to call while other workers run.
func (q *RedisQueue) Requeue(ctx context.Context) (int, error) {
	consumers, err := q.Client.SMembers(ctx, q.consumersKey()).Result()
	if err != nil {
		return 0, err
	}

	total := 0
	seen := false
	for _, consumer := range consumers {
		if consumer == q.Consumer {
			seen = true
		} else {
			alive, err := q.Client.Exists(ctx, q.heartbeatKey(consumer)).Result()
			if err != nil {
				return total, err
			}
			if alive > 0 {
				continue
			}
		}

		n, err := q.drain(ctx, consumer)
		total += n
		if err != nil {
			return total, err
		}
		if consumer != q.Consumer {
			if err := q.Client.SRem(ctx, q.consumersKey(), consumer).Err(); err != nil {
				return total, err
			}
		}
	}

	if !seen {
		n, err := q.drain(ctx, q.Consumer)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (q *RedisQueue) drain(ctx context.Context, consumer string) (int, error) {
	n := 0
	for {
		err := q.Client.RPopLPush(ctx, q.processingKeyOf(consumer), q.Name).Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.Client.LLen(ctx, q.Name).Result()
}

func (q *RedisQueue) DeadLen(ctx context.Context) (int64, error) {
	return q.Client.LLen(ctx, q.deadKey()).Result()
}

// Lock is a best-effort mutual exclusion key with a TTL.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TryLock returns nil and no error when the key is held by someone else.
func TryLock(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Lock{client: client, key: key, token: token}, nil
}

// Release deletes the key only if this lock still owns it.
func (l *Lock) Release(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
