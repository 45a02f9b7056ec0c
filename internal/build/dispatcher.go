package build

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Dispatcher runs sessions under caller-chosen keys so that each of them
// can be canceled on its own.
type Dispatcher struct {
	runner *Runner

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

func NewDispatcher(runner *Runner) *Dispatcher {
	return &Dispatcher{
		runner:  runner,
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// NewSession implements Sessions.
func (d *Dispatcher) NewSession(req *Request) (*Session, error) {
	return d.runner.NewSession(req)
}

// Reserve implements Sessions.
// It registers key and returns a context derived from ctx that Cancel(key)
// cancels. The key stays registered until release is called.
func (d *Dispatcher) Reserve(ctx context.Context, key uuid.UUID) (runCtx context.Context, release func(), err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cancels[key]; ok {
		return nil, nil, fmt.Errorf("build.Dispatcher: session for %s: %w", key, ErrAlreadyExists)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancels[key] = cancel
	release = func() {
		cancel()
		d.mu.Lock()
		delete(d.cancels, key)
		d.mu.Unlock()
	}
	return runCtx, release, nil
}

// RunSession implements Sessions.
func (d *Dispatcher) RunSession(ctx context.Context, s *Session) (*Result, error) {
	return d.runner.RunSession(ctx, s)
}

// Run reserves key and runs s with the reserved context.
func (d *Dispatcher) Run(ctx context.Context, key uuid.UUID, s *Session) (*Result, error) {
	runCtx, release, err := d.Reserve(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	return d.RunSession(runCtx, s)
}

// Cancel implements Sessions.
// It reports whether key was reserved.
func (d *Dispatcher) Cancel(key uuid.UUID) bool {
	d.mu.Lock()
	cancel, ok := d.cancels[key]
	d.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Len returns the number of reserved keys.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cancels)
}
