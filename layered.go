package settings

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/goliatone/go-settings/internal/clone"
	"github.com/goliatone/go-settings/internal/codec"
	"github.com/goliatone/go-settings/pkg/activity"
)

// LayeredProvider stores machine wide defaults in a default repository,
// keyed TypeName.default, and user customizations in an override repository
// keyed TypeName. Saves only ever write fields that deviate from the default
// repository.
type LayeredProvider struct {
	mu        sync.Mutex
	overrides *Provider
	defaults  *defaultRepository
}

// NewLayeredProvider constructs a two tier provider over store. Both
// repositories share the store and the protection key. A nil store falls back
// to the roaming config folder DefaultAppFolder.
func NewLayeredProvider(store Storage, opts ...Option) *LayeredProvider {
	cfg := applyOptions(opts)
	store = resolveStorage(store)
	lp := &LayeredProvider{
		defaults:  &defaultRepository{provider: newProvider(store, cfg, DefaultRepositorySuffix, activity.TierDefault, true)},
		overrides: newProvider(store, cfg, "", activity.TierOverride, false),
	}
	lp.overrides.defaults = lp.repositoryDefaults
	return lp
}

// Storage returns the backend shared by both repositories.
func (lp *LayeredProvider) Storage() Storage {
	return lp.overrides.storage
}

// Defaults exposes the provider backing the default repository. Values saved
// through it become the baseline for every override consumer of the store.
func (lp *LayeredProvider) Defaults() *Provider {
	return lp.defaults.provider
}

func (lp *LayeredProvider) getSettings(ctx context.Context, t reflect.Type, fresh bool) (reflect.Value, error) {
	meta, err := metadataFor(t)
	if err != nil {
		return reflect.Value{}, err
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.overrides.get(ctx, meta, fresh)
}

func (lp *LayeredProvider) saveSettings(ctx context.Context, value reflect.Value) error {
	meta, err := metadataFor(value.Type().Elem())
	if err != nil {
		return err
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.overrides.save(ctx, meta, value, false)
}

func (lp *LayeredProvider) resetSettings(ctx context.Context, t reflect.Type) (reflect.Value, error) {
	meta, err := metadataFor(t)
	if err != nil {
		return reflect.Value{}, err
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.overrides.reset(ctx, meta)
}

// repositoryDefaults is the default source of the override tier: a copy of the
// reconciled default repository instance with protected fields protected under
// the override tier's key.
func (lp *LayeredProvider) repositoryDefaults(ctx context.Context, meta *typeMetadata) (reflect.Value, error) {
	resolved, err := lp.defaults.resolve(ctx, meta)
	if err != nil {
		return reflect.Value{}, err
	}
	instance := clone.Value(resolved)
	if err := lp.overrides.protectAll(meta, instance); err != nil {
		return reflect.Value{}, err
	}
	return instance, nil
}

// defaultRepository reconciles the persisted default snapshot with the
// computed defaults of a type.
type defaultRepository struct {
	provider *Provider
}

// resolve returns the fresh default repository instance in plaintext. The
// snapshot is rewritten only when it is missing or a field differs from the
// resolved instance.
func (r *defaultRepository) resolve(ctx context.Context, meta *typeMetadata) (reflect.Value, error) {
	p := r.provider
	start := time.Now()

	snapshot, found, err := p.snapshot(ctx, meta)
	if err != nil {
		return reflect.Value{}, err
	}
	if err := p.unprotectAll(meta, snapshot); err != nil {
		return reflect.Value{}, err
	}
	resolved, err := p.get(ctx, meta, true)
	if err != nil {
		return reflect.Value{}, err
	}
	if found && !differs(meta, snapshot, resolved) {
		return resolved, nil
	}

	keys, err := p.persist(ctx, meta, resolved, true)
	p.logEvent(OpDefaultsSync, meta, start, len(keys), err)
	if err != nil {
		return reflect.Value{}, err
	}
	p.emit(ctx, activity.BuildDefaultsSyncedEvent(p.eventInput(meta, keys)))
	return p.cache[meta.typ], nil
}

func differs(meta *typeMetadata, a, b reflect.Value) bool {
	for _, desc := range meta.descriptors {
		left := a.Elem().FieldByIndex(desc.index).Interface()
		right := b.Elem().FieldByIndex(desc.index).Interface()
		if !codec.Equal(left, right) {
			return true
		}
	}
	return false
}
