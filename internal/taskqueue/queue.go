// SPDX-License-Identifier: MPL-2.0

// Package taskqueue runs the declared tasks of loaded units in load order.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/yokehq/yoke/pkg/compose"
)

// DefaultMaxSize is the default number of units a queue holds.
const DefaultMaxSize = 1024

// SpanRunTask is the span opened around each task.
const SpanRunTask = "taskqueue.run_task"

// ErrQueueFull is returned when queuing into a full queue.
var ErrQueueFull = errors.New("task queue is full")

type (
	// Entry is a queued unit.
	Entry struct {
		API        *compose.API
		Tasks      []string
		EnqueuedAt time.Time
	}

	// Result is the outcome of one task.
	Result struct {
		Unit  string
		Task  string
		Value any
	}

	// TaskError reports the task that stopped a run.
	TaskError struct {
		Unit string
		Task string
		Err  error
	}

	// Queue is a FIFO of loaded units. It implements compose.TaskQueue:
	// units declaring tasks through compose.Tasker are queued, others are
	// ignored.
	Queue struct {
		mu      sync.Mutex
		entries []Entry
		maxSize int
		logger  *slog.Logger
		tracer  trace.Tracer
	}

	// Option configures a Queue.
	Option func(*Queue)
)

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s of %s failed: %v", e.Task, e.Unit, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// WithMaxSize bounds the queue. Non-positive sizes select DefaultMaxSize.
func WithMaxSize(n int) Option { return func(q *Queue) { q.maxSize = n } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(q *Queue) { q.logger = l } }

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option { return func(q *Queue) { q.tracer = t } }

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{}
	for _, opt := range opts {
		opt(q)
	}
	if q.maxSize <= 0 {
		q.maxSize = DefaultMaxSize
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}
	if q.tracer == nil {
		q.tracer = noop.NewTracerProvider().Tracer("noop")
	}
	return q
}

// Queue implements compose.TaskQueue.
func (q *Queue) Queue(_ context.Context, unit compose.Unit, api *compose.API) error {
	tasker, ok := unit.(compose.Tasker)
	if !ok {
		return nil
	}
	tasks := tasker.Tasks()
	if len(tasks) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) >= q.maxSize {
		return ErrQueueFull
	}
	q.entries = append(q.entries, Entry{API: api, Tasks: tasks, EnqueuedAt: time.Now()})
	return nil
}

// Len returns the number of queued units.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Dequeue removes and returns the unit at the front of the queue.
func (q *Queue) Dequeue() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

// Run dequeues units until the queue is empty and invokes their tasks in
// order. Units queued by running tasks are run in the same call. The first
// failing task stops the run; units still queued stay queued.
func (q *Queue) Run(ctx context.Context) ([]Result, error) {
	var results []Result
	for {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		entry, ok := q.Dequeue()
		if !ok {
			return results, nil
		}

		unit := entry.API.Namespace().ID()
		for _, task := range entry.Tasks {
			value, err := q.runTask(ctx, entry.API, unit, task)
			if err != nil {
				return results, &TaskError{Unit: unit, Task: task, Err: err}
			}
			results = append(results, Result{Unit: unit, Task: task, Value: value})
		}
	}
}

func (q *Queue) runTask(ctx context.Context, api *compose.API, unit, task string) (any, error) {
	ctx, span := q.tracer.Start(ctx, SpanRunTask, trace.WithAttributes(
		attribute.String("unit", unit),
		attribute.String("task", task),
	))
	defer span.End()

	q.logger.Debug("running task", "unit", unit, "task", task)
	value, err := api.Invoke(ctx, task)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return value, nil
}
