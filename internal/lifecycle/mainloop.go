package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"gopkg.in/tomb.v2"

	"github.com/safe-mobile/safe-push/internal/logger"
)

type mainKey struct{}

// MainLoop runs interaction callbacks on one dedicated goroutine, the
// equivalent of a UI main thread. Functions it runs receive a context that
// IsMain recognises.
type MainLoop struct {
	tomb tomb.Tomb

	mu      sync.Mutex
	funcs   []func(ctx context.Context)
	stopped bool
	wake    chan struct{}
}

// NewMainLoop starts the loop
func NewMainLoop() *MainLoop {
	l := &MainLoop{wake: make(chan struct{}, 1)}
	l.tomb.Go(l.run)
	return l
}

// IsMain reports whether ctx belongs to a function running on the loop
func (l *MainLoop) IsMain(ctx context.Context) bool {
	owner, _ := ctx.Value(mainKey{}).(*MainLoop)
	return owner == l
}

// Async schedules fn on the loop and returns at once, also when called from
// the loop itself. It is dropped once the loop is stopped.
func (l *MainLoop) Async(fn func(ctx context.Context)) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.funcs = append(l.funcs, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stop waits for the running function and drops the rest
func (l *MainLoop) Stop() error {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	l.tomb.Kill(nil)
	err := l.tomb.Wait()

	l.mu.Lock()
	l.funcs = nil
	l.mu.Unlock()
	return err
}

// Pending returns the number of scheduled functions not yet started
func (l *MainLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.funcs)
}

func (l *MainLoop) next() (func(ctx context.Context), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.funcs) == 0 {
		return nil, false
	}
	fn := l.funcs[0]
	l.funcs[0] = nil
	l.funcs = l.funcs[1:]
	return fn, true
}

func (l *MainLoop) run() error {
	ctx := context.WithValue(l.tomb.Context(context.Background()), mainKey{}, l)
	for {
		select {
		case <-l.tomb.Dying():
			return nil
		default:
		}

		fn, ok := l.next()
		if !ok {
			select {
			case <-l.tomb.Dying():
				return nil
			case <-l.wake:
			}
			continue
		}
		l.call(ctx, fn)
	}
}

func (l *MainLoop) call(ctx context.Context, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "main loop callback panicked", "error", fmt.Sprint(r))
		}
	}()
	fn(ctx)
}
