// Package sequence runs posted tasks one at a time on a dedicated goroutine.
//
// A Runner gives single-threaded components, such as media.Manager, an
// owning sequence: every task posted to the same Runner observes the effects
// of the tasks posted before it, without locks in the component itself.
package sequence

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultQueueSize is the task buffer used by New when size <= 0
const DefaultQueueSize = 64

// Poster accepts tasks for ordered execution
type Poster interface {
	Post(task func()) bool
}

// Runner executes tasks in FIFO order on one goroutine
type Runner struct {
	name   string
	tasks  chan func()
	quit   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New starts a runner with the given queue size
func New(name string, size int, logger *zap.Logger) *Runner {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{
		name:   name,
		tasks:  make(chan func(), size),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}

	go r.loop()

	return r
}

// Name returns the runner name
func (r *Runner) Name() string {
	return r.name
}

// Post queues task for execution. It blocks while the queue is full and
// returns false if the runner is closed.
func (r *Runner) Post(task func()) bool {
	if task == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false
	}

	select {
	case r.tasks <- task:
		return true
	case <-r.quit:
		return false
	}
}

// Close stops the runner and waits for the running task to return.
// Queued tasks that have not started are dropped.
func (r *Runner) Close() {
	r.closeOnce.Do(func() {
		close(r.quit)

		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
	})
	<-r.done
}

// Done is closed once the runner has stopped
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) loop() {
	defer close(r.done)

	for {
		select {
		case <-r.quit:
			return
		case task := <-r.tasks:
			select {
			case <-r.quit:
				return
			default:
			}
			r.run(task)
		}
	}
}

// run executes one task; a panicking task is logged and the runner keeps going
func (r *Runner) run(task func()) {
	defer func() {
		if e := recover(); e != nil {
			r.logger.Error("sequence task panicked",
				zap.String("runner", r.name),
				zap.String("panic", fmt.Sprint(e)),
			)
		}
	}()
	task()
}
