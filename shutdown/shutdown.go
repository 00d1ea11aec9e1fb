// Package shutdown runs cleanup hooks when the process is asked to stop.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/JIeeiroSst/cassutils/logger"
	"go.uber.org/zap"
)

const DefaultTimeout = 30 * time.Second

type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

type Listener struct {
	timeout time.Duration

	mu    sync.Mutex
	hooks []namedHook
}

func NewListener(timeout time.Duration) *Listener {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Listener{timeout: timeout}
}

// Register adds a hook. Hooks run in reverse registration order.
func (l *Listener) Register(name string, hook Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, namedHook{name: name, fn: hook})
}

// Wait blocks until one of signals arrives or ctx is done, then runs the
// hooks. Without signals it listens for SIGINT and SIGTERM.
func (l *Listener) Wait(ctx context.Context, signals ...os.Signal) error {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, signals...)
	defer signal.Stop(c)

	log := logger.WithContext(ctx)
	select {
	case sig := <-c:
		log.Info("shutdown by signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		log.Info("shutdown by context", zap.Error(ctx.Err()))
	}

	return l.Shutdown(context.WithoutCancel(ctx))
}

// Shutdown runs every registered hook once under the listener timeout and
// joins their errors. A failing hook does not stop the others.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	hooks := l.hooks
	l.hooks = nil
	l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	log := logger.WithContext(ctx)
	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		log.Debug("running shutdown hook", zap.String("hook", h.name))
		if err := h.fn(ctx); err != nil {
			log.Error("shutdown hook failed", zap.String("hook", h.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}
