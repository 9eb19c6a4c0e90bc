package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/weftlabs/weft/internal/effect"
	"github.com/weftlabs/weft/internal/kernel"
	"github.com/weftlabs/weft/internal/resource"
	"github.com/weftlabs/weft/internal/value"
)

// Engine is the single-writer executor.
//
// All store mutation happens on the executor goroutine; Execute and Resume
// submit tasks in FIFO order and block until their task completes. Two
// concurrent Execute calls therefore run back to back, never interleaved,
// which is what keeps the linearity invariant lock-free.
type Engine struct {
	store    *resource.Store
	registry *effect.Registry
	tokens   TokenGenerator
	queue    *taskQueue
	channels *channelTable

	mu      sync.Mutex
	waiting map[string]*kernel.Frame

	nextTask atomic.Uint64
	done     chan struct{}
}

// Option configures engine construction.
type Option func(*Engine)

// WithStore substitutes a pre-populated resource store, letting the host
// stage resources before the first execution.
func WithStore(s *resource.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithBuiltins registers the built-in emit/mint/burn handlers.
func WithBuiltins() Option {
	return func(e *Engine) {
		if err := effect.RegisterBuiltins(e.registry); err != nil {
			// Registration of the fixed built-in set cannot collide unless
			// construction itself is broken.
			panic(fmt.Sprintf("engine: register builtins: %v", err))
		}
	}
}

// New creates an engine and starts its executor goroutine.
// The channel effects are always registered; other built-ins are opt-in.
func New(tokens TokenGenerator, opts ...Option) (*Engine, error) {
	if tokens == nil {
		return nil, fmt.Errorf("engine: token generator is required")
	}

	e := &Engine{
		store:    resource.NewStore(),
		registry: effect.NewRegistry(),
		tokens:   tokens,
		queue:    newTaskQueue(),
		channels: newChannelTable(),
		waiting:  make(map[string]*kernel.Frame),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := registerChannelEffects(e.registry, e.channels); err != nil {
		return nil, fmt.Errorf("engine: register channel effects: %w", err)
	}

	go e.run()
	return e, nil
}

// RegisterHandler binds a handler before execution starts.
// Not safe to call concurrently with Execute.
func (e *Engine) RegisterHandler(spec effect.Spec, fn effect.Handler) (effect.TypeID, error) {
	return e.registry.Register(spec, fn)
}

// HasHandler reports whether a handler is registered under name.
func (e *Engine) HasHandler(name string) bool {
	_, _, ok := e.registry.Lookup(effect.TypeIDFor(name))
	return ok
}

// Execute runs a program to a terminus and returns the sealed trace.
// Blocks until the task's turn on the executor completes. A Suspended
// result parks the frame under its continuation token for Resume.
func (e *Engine) Execute(p *kernel.Program, initial map[kernel.RegID]value.Value, ctx *kernel.Context) (*kernel.RunResult, error) {
	return e.submit(func() (*kernel.RunResult, error) {
		it, err := kernel.New(kernel.Config{
			Program:  p,
			Store:    e.store,
			Registry: e.registry,
			Context:  ctx,
			Tokens:   e.tokens.Generate,
		}, initial)
		if err != nil {
			return nil, err
		}
		res, err := it.Run()
		if err != nil {
			return nil, err
		}
		e.park(res)
		return res, nil
	})
}

// Resume continues the suspended execution identified by token, injecting
// results as the suspended effect's completion. The frame is removed from
// the waiting set before resumption; resuming an unknown or already
// resumed token fails with UnknownTokenError.
func (e *Engine) Resume(token string, results []value.Value) (*kernel.RunResult, error) {
	return e.submit(func() (*kernel.RunResult, error) {
		e.mu.Lock()
		frame, ok := e.waiting[token]
		if ok {
			delete(e.waiting, token)
		}
		e.mu.Unlock()
		if !ok {
			return nil, &UnknownTokenError{Token: token}
		}

		res, err := kernel.Resume(frame, e.store, e.registry, results)
		if err != nil {
			return nil, err
		}
		e.park(res)
		return res, nil
	})
}

// park stores a suspended frame under its token.
func (e *Engine) park(res *kernel.RunResult) {
	if res.Frame == nil {
		return
	}
	e.mu.Lock()
	e.waiting[res.Frame.Token] = res.Frame
	e.mu.Unlock()
	slog.Debug("execution parked", "token", res.Frame.Token, "waiting", len(e.waiting))
}

// Waiting returns the number of suspended executions.
func (e *Engine) Waiting() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.waiting)
}

// OpenChannel allocates a host-side channel.
func (e *Engine) OpenChannel() value.ChannelID {
	return e.channels.Open()
}

// PushChannel appends a value for a program to receive.
func (e *Engine) PushChannel(ch value.ChannelID, v value.Value) error {
	return e.channels.Push(ch, v)
}

// PopChannel removes the front value a program sent.
func (e *Engine) PopChannel(ch value.ChannelID) (value.Value, bool, error) {
	return e.channels.Pop(ch)
}

// Close stops the executor after draining queued tasks. Suspended frames
// still waiting are discarded. Idempotent.
func (e *Engine) Close() {
	e.queue.Close()
	<-e.done
}

// submit enqueues work and blocks for its result.
func (e *Engine) submit(work func() (*kernel.RunResult, error)) (*kernel.RunResult, error) {
	t := &task{
		id:   e.nextTask.Add(1),
		work: work,
		done: make(chan taskResult, 1),
	}
	if !e.queue.Enqueue(t) {
		return nil, ErrClosed
	}
	r := <-t.done
	return r.res, r.err
}

// run is the executor loop. Exactly one instance per engine.
func (e *Engine) run() {
	defer close(e.done)
	for {
		t, ok := e.queue.Dequeue()
		if !ok {
			slog.Debug("executor stopped", "tasks_run", e.nextTask.Load())
			return
		}
		res, err := t.work()
		if err != nil {
			slog.Debug("task failed", "task", t.id, "err", err)
		} else {
			slog.Debug("task finished", "task", t.id, "terminus", res.Trace.Terminus.String())
		}
		t.done <- taskResult{res: res, err: err}
	}
}
