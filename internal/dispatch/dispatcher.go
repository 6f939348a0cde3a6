// Package dispatch runs background tasks with per-user FIFO ordering.
// Tasks for the same user never overlap; tasks for different users run
// concurrently. There is no retry and no persistence: a failed task is
// logged and dropped, the next sync naturally re-derives its work.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fincoach/internal/config"
)

// Task is one unit of background work. The context carries the task timeout.
type Task func(ctx context.Context) error

type job struct {
	name string
	task Task
}

type userQueue struct {
	ch       chan job
	lastSeen time.Time
}

// Dispatcher owns one goroutine per active user, created on first use and
// reaped after the queue sits idle.
type Dispatcher struct {
	mu      sync.Mutex
	queues  map[uuid.UUID]*userQueue
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	taskTimeout time.Duration
	queueSize   int
	idleTTL     time.Duration
	logger      *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queues:      make(map[uuid.UUID]*userQueue),
		baseCtx:     ctx,
		cancel:      cancel,
		taskTimeout: cfg.Dispatch.TaskTimeout,
		queueSize:   cfg.Dispatch.QueueSize,
		idleTTL:     cfg.Dispatch.IdleQueueTTL,
		logger:      logger,
	}
}

// Enqueue appends a task to the user's queue, starting a consumer if none is
// running. A full queue drops the task with a log line rather than blocking
// the caller; the next sync pass will redo the work.
func (d *Dispatcher) Enqueue(userID uuid.UUID, name string, task Task) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.baseCtx.Err() != nil {
		d.logger.Warn("dispatcher stopped, task dropped",
			zap.String("user_id", userID.String()),
			zap.String("task", name))
		return
	}

	q, ok := d.queues[userID]
	if !ok {
		q = &userQueue{ch: make(chan job, d.queueSize)}
		d.queues[userID] = q
		d.wg.Add(1)
		go d.consume(userID, q)
	}
	q.lastSeen = time.Now()

	select {
	case q.ch <- job{name: name, task: task}:
	default:
		d.logger.Error("user queue full, task dropped",
			zap.String("user_id", userID.String()),
			zap.String("task", name))
	}
}

// consume drains one user's queue serially until the queue idles out or the
// dispatcher stops.
func (d *Dispatcher) consume(userID uuid.UUID, q *userQueue) {
	defer d.wg.Done()
	idle := time.NewTimer(d.idleTTL)
	defer idle.Stop()

	for {
		select {
		case <-d.baseCtx.Done():
			d.removeQueue(userID, q)
			return
		case <-idle.C:
			if d.retireIfIdle(userID, q) {
				return
			}
			idle.Reset(d.idleTTL)
		case j := <-q.ch:
			d.run(userID, j)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTTL)
		}
	}
}

func (d *Dispatcher) run(userID uuid.UUID, j job) {
	ctx, cancel := context.WithTimeout(d.baseCtx, d.taskTimeout)
	defer cancel()

	start := time.Now()
	err := j.task(ctx)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.Error("background task failed",
			zap.String("user_id", userID.String()),
			zap.String("task", j.name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return
	}
	d.logger.Debug("background task done",
		zap.String("user_id", userID.String()),
		zap.String("task", j.name),
		zap.Duration("elapsed", elapsed))
}

// retireIfIdle removes the queue if nothing was enqueued since the timer was
// set and the channel is empty. Enqueue holds the same lock, so a task can't
// slip into a retired queue.
func (d *Dispatcher) retireIfIdle(userID uuid.UUID, q *userQueue) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(q.ch) > 0 || time.Since(q.lastSeen) < d.idleTTL {
		return false
	}
	delete(d.queues, userID)
	return true
}

func (d *Dispatcher) removeQueue(userID uuid.UUID, q *userQueue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queues[userID] == q {
		delete(d.queues, userID)
	}
}

// Stop cancels running tasks and waits for all consumers to exit.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}
