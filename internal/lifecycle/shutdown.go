package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Hook is one named step of the shutdown sequence.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Shutdown runs registered hooks sequentially in registration order. Order
// matters here: open voice sessions must flush into storage before the
// database connection closes, and the reconciler must stop before the flush
// so the same minutes are not credited twice.
type Shutdown struct {
	mu    sync.Mutex
	hooks []Hook
	log   *slog.Logger
}

// NewShutdown constructs a Shutdown coordinator.
func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log}
}

// Register adds a named shutdown hook. Hooks run in the order they were
// registered.
func (s *Shutdown) Register(name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Fn: fn})
}

// Execute runs all registered hooks one after another and collects their
// errors. A failing hook does not stop the ones after it.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []string
	for _, hook := range hooks {
		if hook.Fn == nil {
			continue
		}

		s.log.Info("running shutdown hook", slog.String("hook", hook.Name))

		hookStart := time.Now()
		if err := hook.Fn(ctx); err != nil {
			s.log.Error("shutdown hook failed",
				slog.String("hook", hook.Name),
				slog.Any("error", err),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", hook.Name, err))
			continue
		}

		s.log.Info("shutdown hook finished",
			slog.String("hook", hook.Name),
			slog.Duration("took", time.Since(hookStart)),
		)
	}

	s.log.Info("shutdown sequence finished", slog.Duration("took", time.Since(start)))

	if len(errs) > 0 {
		return errors.New("shutdown errors: " + strings.Join(errs, "; "))
	}

	return nil
}
