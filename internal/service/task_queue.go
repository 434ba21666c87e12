package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TaskFunc es trabajo en segundo plano desacoplado del ciclo request/response.
type TaskFunc func(ctx context.Context) error

// TaskRunner recibe tareas fire-and-forget. Submit nunca bloquea; devuelve false si la tarea se descarto.
type TaskRunner interface {
	Submit(name string, fn TaskFunc) bool
}

type TaskQueueOptions struct {
	Workers     int
	Size        int
	MaxAttempts int
	Timeout     time.Duration
	Backoff     time.Duration
	Logger      *zap.Logger
	Metrics     *Metrics
}

type task struct {
	name string
	fn   TaskFunc
}

// TaskQueue es un canal acotado con N workers, timeout por tarea y reintentos con backoff lineal.
type TaskQueue struct {
	opts  TaskQueueOptions
	tasks chan task
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

func NewTaskQueue(opts TaskQueueOptions) *TaskQueue {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Size <= 0 {
		opts.Size = 256
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &TaskQueue{
		opts:  opts,
		tasks: make(chan task, opts.Size),
	}
}

// Start lanza los workers. Llamarlo mas de una vez no tiene efecto.
func (q *TaskQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
}

func (q *TaskQueue) Submit(name string, fn TaskFunc) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.opts.Logger.Warn("task dropped: queue closed", zap.String("task", name))
		q.opts.Metrics.Task(name, "dropped")
		return false
	}
	select {
	case q.tasks <- task{name: name, fn: fn}:
		return true
	default:
		q.opts.Logger.Warn("task dropped: queue full", zap.String("task", name))
		q.opts.Metrics.Task(name, "dropped")
		return false
	}
}

// Shutdown deja de aceptar tareas y espera a que se drene la cola o a que ctx expire.
func (q *TaskQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	started := q.started
	q.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task queue shutdown: %w", ctx.Err())
	}
}

func (q *TaskQueue) worker() {
	defer q.wg.Done()
	for t := range q.tasks {
		runTask(t.name, t.fn, q.opts)
	}
}

// InlineRunner ejecuta cada tarea en el acto con la misma politica de reintentos. Para CLIs y tests.
type InlineRunner struct {
	opts TaskQueueOptions
}

func NewInlineRunner(maxAttempts int, logger *zap.Logger) *InlineRunner {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InlineRunner{opts: TaskQueueOptions{MaxAttempts: maxAttempts, Timeout: 10 * time.Second, Logger: logger}}
}

func (r *InlineRunner) Submit(name string, fn TaskFunc) bool {
	runTask(name, fn, r.opts)
	return true
}

func runTask(name string, fn TaskFunc, opts TaskQueueOptions) {
	var err error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err = runAttempt(fn, opts.Timeout)
		if err == nil {
			opts.Metrics.Task(name, "ok")
			return
		}
		opts.Logger.Warn("background task failed",
			zap.String("task", name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < opts.MaxAttempts && opts.Backoff > 0 {
			time.Sleep(time.Duration(attempt) * opts.Backoff)
		}
	}
	opts.Metrics.Task(name, "failed")
}

func runAttempt(fn TaskFunc, timeout time.Duration) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return fn(ctx)
}
