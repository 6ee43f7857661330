package settings

import (
	"context"
	"fmt"
	"reflect"
)

// Get returns the settings instance of type T held by src. Unless fresh is
// set, repeated calls return the same pointer. A fresh call rebuilds the
// instance from defaults and storage and replaces the cache entry; pointers
// returned earlier keep their old values.
func Get[T any](ctx context.Context, src Source, fresh bool) (*T, error) {
	value, err := src.getSettings(ctx, reflect.TypeFor[T](), fresh)
	if err != nil {
		return nil, err
	}
	return value.Interface().(*T), nil
}

// Save persists settings. Nil fields fall back to their defaults. The cached
// instance of T is updated in place to the saved values.
func Save[T any](ctx context.Context, src Source, settings *T) error {
	if settings == nil {
		return ErrNilSettings
	}
	return src.saveSettings(ctx, reflect.ValueOf(settings))
}

// Reset restores every field of T to its default, saves the result and
// returns the cached instance, which keeps its identity when one existed.
func Reset[T any](ctx context.Context, src Source) (*T, error) {
	value, err := src.resetSettings(ctx, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return value.Interface().(*T), nil
}

// GenerateSchema describes T with the schema generator configured on src.
func GenerateSchema[T any](ctx context.Context, src Source) (SchemaDocument, error) {
	input, generator, err := src.describe(ctx, reflect.TypeFor[T]())
	if err != nil {
		return SchemaDocument{}, err
	}
	doc, err := generator.Generate(input)
	if err != nil {
		return SchemaDocument{}, fmt.Errorf("settings: generate schema %s: %w", input.TypeName, err)
	}
	return doc, nil
}

// Snapshot loads the blob persisted for T into a zero instance without
// applying defaults or touching the cache. Protected fields keep their
// persisted form. ok is false when nothing is persisted.
func Snapshot[T any](ctx context.Context, p *Provider) (settings *T, ok bool, err error) {
	meta, err := metadataFor(reflect.TypeFor[T]())
	if err != nil {
		return nil, false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	value, ok, err := p.snapshot(ctx, meta)
	if err != nil {
		return nil, false, err
	}
	return value.Interface().(*T), ok, nil
}

// RepositoryKey returns the repository key p uses for T.
func RepositoryKey[T any](p *Provider) (string, error) {
	meta, err := metadataFor(reflect.TypeFor[T]())
	if err != nil {
		return "", err
	}
	return p.repositoryKey(meta), nil
}

// TraceKey explains where the value persisted under key comes from: the
// computed default, the default repository or the override repository.
func TraceKey[T any](ctx context.Context, lp *LayeredProvider, key string) (Trace, error) {
	meta, err := metadataFor(reflect.TypeFor[T]())
	if err != nil {
		return Trace{}, err
	}
	return lp.trace(ctx, meta, key)
}
