package concurrent

import (
	"context"
	"errors"
	"sync"
)

var ErrLoopClosed = errors.New("event loop closed")

// EventLoop runs posted tasks one at a time on a single goroutine, in posting order.
// state owned by the loop needs no locking as long as it is only touched from
// tasks. tasks still queued when Close is called are dropped.
type EventLoop struct {
	tasks     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewEventLoop(queueSize int) *EventLoop {
	l := &EventLoop{
		tasks: make(chan func(), queueSize),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *EventLoop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case fn := <-l.tasks:
			select {
			case <-l.quit:
				return
			default:
			}
			fn()
		}
	}
}

// Post. queue fn without waiting for it to run. false if the loop is closed.
func (l *EventLoop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case <-l.quit:
		return false
	case l.tasks <- fn:
		return true
	}
}

// Call. run fn on the loop and wait for it to finish. must not be called from a
// task, that would deadlock.
func (l *EventLoop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}

// Close. stop the loop after the running task. safe to call more than once.
func (l *EventLoop) Close() {
	l.closeOnce.Do(func() {
		close(l.quit)
	})
	<-l.done
}

func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}
