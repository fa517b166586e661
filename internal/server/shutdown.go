package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"dept-desk/internal/dbpool"
)

// State of the shutdown coordinator.
type State int

const (
	Running State = iota
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Coordinator drives graceful shutdown as an explicit state machine:
// Running -> Draining -> Stopped. The first termination signal starts the
// drain (stop accepting requests, wait for the pool to empty, bounded by the
// grace period). A second signal while Draining idempotently cuts the grace
// short and force-closes; it never double-closes the pool handle. Both the
// clean and the forced path end in Stopped, and the process exits 0 either
// way.
type Coordinator struct {
	srv   *http.Server
	pool  *dbpool.Pool
	grace time.Duration

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc

	done chan struct{}
}

func NewCoordinator(srv *http.Server, pool *dbpool.Pool, grace time.Duration) *Coordinator {
	return &Coordinator{
		srv:   srv,
		pool:  pool,
		grace: grace,
		state: Running,
		done:  make(chan struct{}),
	}
}

// State reports the current phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the coordinator reaches Stopped.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Signal feeds one termination signal into the state machine. The first call
// starts the drain; any later call forces the close if still draining and is
// a no-op once stopped.
func (c *Coordinator) Signal() {
	c.mu.Lock()
	switch c.state {
	case Running:
		c.state = Draining
		ctx, cancel := context.WithTimeout(context.Background(), c.grace)
		c.cancel = cancel
		c.mu.Unlock()
		slog.Info("Shutdown signal received, draining", "grace", c.grace)
		go c.drain(ctx)
	case Draining:
		cancel := c.cancel
		c.mu.Unlock()
		slog.Warn("Second shutdown signal, forcing close")
		cancel()
	default:
		c.mu.Unlock()
	}
}

func (c *Coordinator) drain(ctx context.Context) {
	// Stop accepting HTTP work first, then let the pool empty out. Both share
	// the same grace deadline; canceling it converts the drain into a forced
	// close.
	if err := c.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("HTTP shutdown did not finish cleanly", "error", err)
	}

	if err := c.pool.Drain(ctx); err != nil {
		// Forced close is logged, never fatal; the process still exits 0.
		slog.Warn("Pool drain did not finish cleanly", "error", err)
	} else {
		slog.Info("Pool drained", "outstanding", c.pool.Outstanding())
	}

	c.mu.Lock()
	c.state = Stopped
	cancel := c.cancel
	c.mu.Unlock()
	cancel()

	close(c.done)
}
