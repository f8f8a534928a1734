package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chemaudit/chemaudit/internal/kvstore"
	"github.com/chemaudit/chemaudit/pkg/metrics"
)

const (
	queuePrefix      = "queue:"
	processingPrefix = "queue:processing:"
	deadLetterKey    = "queue:dead"
	workersKey       = "queue:workers"
	leasePrefix      = "worker:lease:"
)

func QueueKey(tier string) string        { return queuePrefix + tier }
func ProcessingKey(worker string) string { return processingPrefix + worker }
func LeaseKey(worker string) string      { return leasePrefix + worker }
func DeadLetterKey() string              { return deadLetterKey }

// Delivery is a task taken by a worker. It stays in the worker's processing list until acked or requeued.
type Delivery struct {
	Task   *Task
	Worker string
	raw    string
}

// Queue is a reliable FIFO per tier on top of the key/value store lists. A dequeued task is moved
// atomically to the worker's processing list, so a crashed worker's tasks can be recovered.
type Queue struct {
	kv            kvstore.Store
	maxDeliveries int
	pollInterval  time.Duration
}

var _ metrics.QueueInspector = (*Queue)(nil)

func NewQueue(kv kvstore.Store, maxDeliveries int, pollInterval time.Duration) *Queue {
	if maxDeliveries <= 0 {
		maxDeliveries = DefaultMaxDeliveries
	}
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	return &Queue{kv: kv, maxDeliveries: maxDeliveries, pollInterval: pollInterval}
}

// Enqueue appends t to the tail of its tier.
func (q *Queue) Enqueue(ctx context.Context, t *Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Queue == "" {
		t.Queue = QueueDefault
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}
	if err := q.kv.LPush(ctx, QueueKey(t.Queue), string(raw)); err != nil {
		return fmt.Errorf("enqueueing task: %w", err)
	}
	return nil
}

// TryDequeue takes the oldest task of the first non-empty tier. It returns nil when every tier is empty.
func (q *Queue) TryDequeue(ctx context.Context, worker string, tiers []string) (*Delivery, error) {
	for _, tier := range tiers {
		raw, err := q.kv.RPopLPush(ctx, QueueKey(tier), ProcessingKey(worker))
		if errors.Is(err, kvstore.ErrNil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("dequeueing from %s: %w", tier, err)
		}
		var t Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			zap.S().Named("queue").Errorw("dead-lettering undecodable task", "queue", tier, "error", err)
			if err := q.kv.RPush(ctx, deadLetterKey, raw); err != nil {
				return nil, err
			}
			if err := q.kv.LRem(ctx, ProcessingKey(worker), 1, raw); err != nil {
				return nil, err
			}
			continue
		}
		return &Delivery{Task: &t, Worker: worker, raw: raw}, nil
	}
	return nil, nil
}

// Dequeue polls the tiers in order until a task arrives or ctx is done.
func (q *Queue) Dequeue(ctx context.Context, worker string, tiers []string) (*Delivery, error) {
	for {
		d, err := q.TryDequeue(ctx, worker, tiers)
		if err != nil || d != nil {
			return d, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

// Ack releases a finished delivery.
func (q *Queue) Ack(ctx context.Context, d *Delivery) error {
	if err := q.kv.LRem(ctx, ProcessingKey(d.Worker), 1, d.raw); err != nil {
		return fmt.Errorf("acking task %s: %w", d.Task.ID, err)
	}
	return nil
}

// Requeue puts the delivery back at the head of its tier, or into the dead-letter list once it
// has been delivered MaxDeliveries times. It reports whether the task was dead-lettered.
func (q *Queue) Requeue(ctx context.Context, d *Delivery) (bool, error) {
	dead, err := q.redeliver(ctx, d.Task)
	if err != nil {
		return false, err
	}
	if err := q.kv.LRem(ctx, ProcessingKey(d.Worker), 1, d.raw); err != nil {
		return dead, fmt.Errorf("releasing task %s: %w", d.Task.ID, err)
	}
	return dead, nil
}

func (q *Queue) redeliver(ctx context.Context, t *Task) (bool, error) {
	t.Deliveries++
	raw, err := json.Marshal(t)
	if err != nil {
		return false, fmt.Errorf("encoding task: %w", err)
	}
	if t.Deliveries >= q.maxDeliveries {
		if err := q.kv.RPush(ctx, deadLetterKey, string(raw)); err != nil {
			return false, fmt.Errorf("dead-lettering task %s: %w", t.ID, err)
		}
		return true, nil
	}
	// next in line
	if err := q.kv.RPush(ctx, QueueKey(t.Queue), string(raw)); err != nil {
		return false, fmt.Errorf("requeueing task %s: %w", t.ID, err)
	}
	return false, nil
}

// Recover moves every task left in worker's processing list back to its tier. Tasks that ran
// out of deliveries are returned so that their jobs can be failed.
func (q *Queue) Recover(ctx context.Context, worker string) (int, []*Task, error) {
	key := ProcessingKey(worker)
	raws, err := q.kv.LRange(ctx, key, 0, -1)
	if err != nil {
		return 0, nil, fmt.Errorf("listing processing tasks: %w", err)
	}
	var dead []*Task
	moved := 0
	for _, raw := range raws {
		var t Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			if err := q.kv.RPush(ctx, deadLetterKey, raw); err != nil {
				return moved, dead, err
			}
		} else {
			isDead, err := q.redeliver(ctx, &t)
			if err != nil {
				return moved, dead, err
			}
			if isDead {
				dead = append(dead, &t)
			}
		}
		if err := q.kv.LRem(ctx, key, 1, raw); err != nil {
			return moved, dead, err
		}
		moved++
	}
	return moved, dead, nil
}

// Depths returns the number of waiting tasks per tier.
func (q *Queue) Depths(ctx context.Context) (map[string]int64, error) {
	depths := make(map[string]int64, len(Tiers))
	for _, tier := range Tiers {
		n, err := q.kv.LLen(ctx, QueueKey(tier))
		if err != nil {
			return nil, err
		}
		depths[tier] = n
	}
	return depths, nil
}

func (q *Queue) DeadLetterDepth(ctx context.Context) (int64, error) {
	return q.kv.LLen(ctx, deadLetterKey)
}

// DeadLetters returns the parked tasks, oldest first.
func (q *Queue) DeadLetters(ctx context.Context) ([]*Task, error) {
	raws, err := q.kv.LRange(ctx, deadLetterKey, 0, -1)
	if err != nil {
		return nil, err
	}
	tasks := make([]*Task, 0, len(raws))
	for _, raw := range raws {
		var t Task
		if err := json.Unmarshal([]byte(raw), &t); err == nil {
			tasks = append(tasks, &t)
		}
	}
	return tasks, nil
}
