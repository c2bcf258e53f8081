package registry

import (
	"context"

	"github.com/goliatone/go-registry/pkg/activity"
)

// WithActivityHooks attaches hooks notified on Set, Reset, Import and
// override scopes. Nil entries are dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	compact := hooks.Compact()
	return func(cfg *config) {
		cfg.activityHooks = compact
		cfg.activity.Enabled = len(compact) > 0
	}
}

// WithActivityConfig sets the channel and default identity stamped on
// emitted events. Enabled is derived from the configured hooks.
func WithActivityConfig(c activity.Config) Option {
	return func(cfg *config) {
		enabled := cfg.activity.Enabled
		cfg.activity = c
		cfg.activity.Enabled = enabled
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (r *Registry) ActivityHooks() activity.Hooks {
	if r == nil {
		return nil
	}
	return r.cfg.activityHooks.Compact()
}

func (r *Registry) emit(ctx context.Context, event activity.Event) {
	if !r.emitter.Enabled() {
		return
	}
	if err := r.emitter.Emit(ctx, event); err != nil {
		r.logger.Warn().Err(err).Str("verb", event.Verb).Msg("activity hook failed")
	}
}
