// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"

	xglog "github.com/ManuGH/xg2g-archive/internal/log"
)

// ShutdownHook releases a resource during shutdown.
// Hooks run in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// RegisterShutdownHook registers hook under name.
func (a *App) RegisterShutdownHook(name string, hook ShutdownHook) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, namedHook{name: name, hook: hook})
}

func (a *App) runShutdownHooks(ctx context.Context) error {
	a.mu.Lock()
	hooks := a.hooks
	a.hooks = nil
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.hook(ctx); err != nil {
			a.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "shutdown.hook_failed").
				Str("hook", h.name).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		a.logger.Debug().Str("hook", h.name).Msg("shutdown hook completed")
	}
	return errors.Join(errs...)
}
