package settings

import (
	"context"
	"reflect"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
)

// FileExtension is appended to a repository key to form the blob name handed
// to Storage.
const FileExtension = ".settings"

// DefaultRepositorySuffix is appended to a type name to form the default
// repository key used by LayeredProvider.
const DefaultRepositorySuffix = ".default"

// DefaultKeyMaterial is the protection key used when no secret key is
// configured.
const DefaultKeyMaterial = "github.com/goliatone/go-settings.Descriptor"

// Storage reads and writes one named text blob. A missing blob is reported as
// ok=false, not as an error. Implementations live in pkg/storage.
type Storage interface {
	Read(ctx context.Context, name string) (content string, ok bool, err error)
	Write(ctx context.Context, name, content string) error
}

// Protector turns plaintext into an opaque protected string and back. Empty
// input must pass through unchanged. pkg/protect provides the default
// implementation.
type Protector interface {
	Protect(plaintext, keyMaterial string) (string, error)
	Unprotect(ciphertext, keyMaterial string) (string, error)
}

// KeyFunc derives the repository key for a settings type.
type KeyFunc func(t reflect.Type) string

// Source is implemented by Provider and LayeredProvider and consumed by the
// generic Get, Save and Reset functions.
type Source interface {
	getSettings(ctx context.Context, t reflect.Type, fresh bool) (reflect.Value, error)
	saveSettings(ctx context.Context, value reflect.Value) error
	resetSettings(ctx context.Context, t reflect.Type) (reflect.Value, error)
	describe(ctx context.Context, t reflect.Type) (SchemaInput, SchemaGenerator, error)
}

// ExprContext carries the inputs available to default expressions.
type ExprContext struct {
	Type  string
	Field string
	Key   string
	Now   *time.Time
	Args  map[string]any
}

func (ctx ExprContext) withDefaults(now func() time.Time) ExprContext {
	if ctx.Now == nil {
		ts := now()
		ctx.Now = &ts
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	return ctx
}

func (ctx ExprContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

func (ctx ExprContext) label() string {
	if ctx.Type == "" && ctx.Field == "" {
		return "unknown"
	}
	return ctx.Type + "." + ctx.Field
}

func (ctx ExprContext) binding() map[string]any {
	args := ctx.Args
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{
		"now":      ctx.timestamp(),
		"args":     args,
		"typeName": ctx.Type,
		"field":    ctx.Field,
		"key":      ctx.Key,
	}
}

// Evaluator computes explicit defaults declared with the defaultExpr tag.
type Evaluator interface {
	Evaluate(ctx ExprContext, expr string) (any, error)
}

// Option configures a Provider or LayeredProvider.
type Option func(*providerConfig)

type providerConfig struct {
	secretKey       string
	protector       Protector
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	defaultArgs     map[string]any
	logger          Logger
	activityHooks   activity.Hooks
	schemaGenerator SchemaGenerator
	keyFunc         KeyFunc
	persistDefaults bool
	now             func() time.Time
}

func applyOptions(opts []Option) providerConfig {
	cfg := providerConfig{
		persistDefaults: true,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg providerConfig) keyMaterial() string {
	if cfg.secretKey != "" {
		return cfg.secretKey
	}
	return DefaultKeyMaterial
}

func (cfg providerConfig) log() Logger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopLogger{}
}

func (cfg providerConfig) schema() SchemaGenerator {
	if cfg.schemaGenerator != nil {
		return cfg.schemaGenerator
	}
	return DefaultSchemaGenerator()
}
