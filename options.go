package settings

import (
	"maps"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
)

// WithSecretKey sets the key material handed to the Protector for protected
// fields. Without it DefaultKeyMaterial is used.
func WithSecretKey(key string) Option {
	return func(cfg *providerConfig) {
		cfg.secretKey = key
	}
}

// WithProtector replaces the default AES-GCM protector.
func WithProtector(p Protector) Option {
	return func(cfg *providerConfig) {
		cfg.protector = p
	}
}

// WithEvaluator configures the evaluator used for defaultExpr tags. The expr
// evaluator is used when none is configured.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *providerConfig) {
		cfg.evaluator = e
	}
}

// WithDefaultArgs exposes args to default expressions under the `args`
// binding. The map is copied.
func WithDefaultArgs(args map[string]any) Option {
	return func(cfg *providerConfig) {
		cfg.defaultArgs = maps.Clone(args)
	}
}

// WithKeyFunc overrides how repository keys are derived from settings types.
// LayeredProvider appends DefaultRepositorySuffix to the derived key for its
// default repository.
func WithKeyFunc(fn KeyFunc) Option {
	return func(cfg *providerConfig) {
		cfg.keyFunc = fn
	}
}

// WithPersistUnchangedDefaults controls whether Save writes fields that equal
// their default value. Provider defaults to true. LayeredProvider ignores it
// and always saves sparse documents.
func WithPersistUnchangedDefaults(persist bool) Option {
	return func(cfg *providerConfig) {
		cfg.persistDefaults = persist
	}
}

// WithClock overrides the time source used for default expressions and
// activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(cfg *providerConfig) {
		if now == nil {
			cfg.now = time.Now
			return
		}
		cfg.now = now
	}
}

// WithActivityHooks attaches activity hooks notified after saves, resets and
// default repository syncs. Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *providerConfig) {
		cfg.activityHooks = normalized
	}
}

// WithSchemaGenerator configures the generator used by GenerateSchema.
func WithSchemaGenerator(generator SchemaGenerator) Option {
	return func(cfg *providerConfig) {
		cfg.schemaGenerator = generator
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
