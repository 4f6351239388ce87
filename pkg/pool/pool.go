// Package pool lends a fixed number of backend connections to concurrent
// callers.
//
// A weighted semaphore holds one permit per slot; the idle queue holds the
// live connections of slots that are not checked out. A slot whose
// connection was discarded stays empty until the next Acquire dials it
// again, so acquired+available always equals the configured size.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	ErrPoolExhausted = errors.New("pool exhausted")
	ErrConnectFailed = errors.New("connect failed")
	ErrPoolClosed    = errors.New("pool closed")
)

// Conn is anything the pool can own.
type Conn interface {
	Close() error
}

// Factory dials a new connection for an empty slot.
type Factory[C Conn] func(ctx context.Context) (C, error)

type Options struct {
	// MaxSize is the number of slots. Must be >= 1.
	MaxSize int
	// AcquireTimeout bounds the wait for a free slot. Zero waits until the
	// caller's context is done.
	AcquireTimeout time.Duration
	// NoWait makes Acquire fail with ErrPoolExhausted instead of waiting.
	NoWait bool
	// IsBroken reports whether an error returned by a caller of WithConn
	// means the connection must not be reused.
	IsBroken func(error) bool
}

// Stats is a snapshot of the slot bookkeeping.
type Stats struct {
	MaxSize   int
	Acquired  int
	Idle      int
	Available int
}

type Pool[C Conn] struct {
	factory Factory[C]
	opts    Options
	sem     *semaphore.Weighted
	logger  *zap.Logger

	mu       sync.Mutex
	idle     []C
	acquired int
	closed   bool
}

// New creates the pool and dials every slot up front, so an unreachable
// backend fails here rather than on the first request.
func New[C Conn](ctx context.Context, factory Factory[C], opts Options, logger *zap.Logger) (*Pool[C], error) {
	if opts.MaxSize < 1 {
		return nil, fmt.Errorf("pool size must be >= 1, got %d", opts.MaxSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool[C]{
		factory: factory,
		opts:    opts,
		sem:     semaphore.NewWeighted(int64(opts.MaxSize)),
		logger:  logger,
		idle:    make([]C, 0, opts.MaxSize),
	}

	for i := 0; i < opts.MaxSize; i++ {
		c, err := factory(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("%w: slot %d: %w", ErrConnectFailed, i, err)
		}
		p.idle = append(p.idle, c)
	}

	p.logger.Info("connection pool ready", zap.Int("max_size", opts.MaxSize))
	return p, nil
}

// Acquire checks out a connection. The caller owns it exclusively until it
// hands it back with Release or Discard, exactly once.
func (p *Pool[C]) Acquire(ctx context.Context) (C, error) {
	var zero C

	if err := p.wait(ctx); err != nil {
		return zero, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.sem.Release(1)
		return zero, ErrPoolClosed
	}
	p.acquired++
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	// empty slot: the permit is ours, dial outside the lock
	c, err := p.factory(ctx)
	if err != nil {
		p.mu.Lock()
		p.acquired--
		p.mu.Unlock()
		p.sem.Release(1)
		return zero, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	p.logger.Debug("refilled pool slot")
	return c, nil
}

func (p *Pool[C]) wait(ctx context.Context) error {
	if p.opts.NoWait {
		if !p.sem.TryAcquire(1) {
			return ErrPoolExhausted
		}
		return nil
	}

	wctx := ctx
	if p.opts.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, p.opts.AcquireTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(wctx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrPoolExhausted
	}
	return nil
}

// Release returns a healthy connection to the idle queue.
func (p *Pool[C]) Release(c C) {
	p.mu.Lock()
	p.acquired--
	if p.closed {
		p.mu.Unlock()
		p.closeConn(c)
		p.sem.Release(1)
		return
	}
	p.idle = append(p.idle, c)
	p.mu.Unlock()
	p.sem.Release(1)
}

// Discard closes a connection that must not be reused and frees its slot.
func (p *Pool[C]) Discard(c C) {
	p.closeConn(c)
	p.mu.Lock()
	p.acquired--
	p.mu.Unlock()
	p.sem.Release(1)
}

// WithConn runs fn on a pooled connection and gives the connection back on
// every exit path. The connection is discarded when fn fails with an error
// IsBroken recognises, when ctx ended while fn ran, or when fn panics.
func (p *Pool[C]) WithConn(ctx context.Context, fn func(C) error) (err error) {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}

	returned := false
	defer func() {
		if !returned {
			p.Discard(c)
		}
	}()

	err = fn(c)
	returned = true
	if err != nil && (ctx.Err() != nil || (p.opts.IsBroken != nil && p.opts.IsBroken(err))) {
		p.logger.Warn("discarding connection", zap.Error(err))
		p.Discard(c)
		return err
	}
	p.Release(c)
	return err
}

func (p *Pool[C]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		MaxSize:   p.opts.MaxSize,
		Acquired:  p.acquired,
		Idle:      len(p.idle),
		Available: p.opts.MaxSize - p.acquired,
	}
}

// Close closes the idle connections. Connections still checked out are
// closed when they come back.
func (p *Pool[C]) Close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	for _, c := range idle {
		p.closeConn(c)
	}
}

func (p *Pool[C]) closeConn(c C) {
	if err := c.Close(); err != nil {
		p.logger.Debug("closing connection", zap.Error(err))
	}
}
