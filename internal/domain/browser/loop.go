package browser

import (
	"context"
	"errors"
	"sync"

	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// ErrLoopStopped is returned when posting to a stopped loop.
var ErrLoopStopped = errors.New("browser loop stopped")

// Loop runs posted tasks one at a time, in order, on a single goroutine.
// Every window and session manager of a browser is only touched from it.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
	logger  *zap.Logger
}

// NewLoop starts a loop.
func NewLoop(logger *zap.Logger) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logging.OrNop(logger),
	}

	go l.run()

	return l
}

// Post queues fn without waiting. It never blocks, so renderer goroutines
// can call it freely.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it, or for ctx. It must not be
// called from a task; tasks call each other directly.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop runs the tasks already queued and then ends the loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	<-l.done
}

// Done is closed once the loop ended.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		stopped := l.stopped
		l.mu.Unlock()

		if len(batch) == 0 {
			if stopped {
				return
			}
			<-l.wake
			continue
		}

		for _, fn := range batch {
			l.runTask(fn)
		}
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("browser task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}
