package server

import (
	"context"

	"github.com/rs/zerolog/log"
)

type hookDefinition struct {
	name string
	fn   func(context.Context) error
}

// ShutdownHooks collects the teardown steps of the process: cache registry,
// refresh pool, database pool, telemetry. Hooks run in registration order
// and a failing hook never stops the rest.
type ShutdownHooks struct {
	hooks []hookDefinition
}

// AddContext registers a hook that honors the shutdown deadline.
func (s *ShutdownHooks) AddContext(name string, hook func(context.Context) error) {
	if hook == nil {
		log.Warn().Str("hook", name).Msg("ignoring nil shutdown hook")
		return
	}
	s.hooks = append(s.hooks, hookDefinition{name: name, fn: hook})
}

// Add registers a hook that needs no context.
func (s *ShutdownHooks) Add(name string, hook func() error) {
	if hook == nil {
		log.Warn().Str("hook", name).Msg("ignoring nil shutdown hook")
		return
	}
	s.AddContext(name, func(context.Context) error {
		return hook()
	})
}

// AddClose registers any resource with a Close method.
func (s *ShutdownHooks) AddClose(name string, closer interface{ Close() }) {
	if closer == nil {
		log.Warn().Str("hook", name).Msg("ignoring nil shutdown hook")
		return
	}
	s.AddContext(name, func(context.Context) error {
		closer.Close()
		return nil
	})
}

// Execute runs every registered hook with the given context, logging each
// outcome.
func (s *ShutdownHooks) Execute(ctx context.Context) {
	for _, hook := range s.hooks {
		hookLog := log.With().Str("hook", hook.name).Logger()

		if err := hook.fn(ctx); err != nil {
			hookLog.Warn().Err(err).Msg("shutdown hook failed")
		} else {
			hookLog.Info().Msg("shutdown hook complete")
		}
	}
}
