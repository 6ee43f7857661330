package settings

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-settings/internal/clone"
	"github.com/goliatone/go-settings/internal/codec"
	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/goliatone/go-settings/pkg/protect"
	"github.com/goliatone/go-settings/pkg/storage"
)

// DefaultAppFolder names the roaming folder used when a provider is built
// without storage.
const DefaultAppFolder = "go-settings"

type defaultSource func(ctx context.Context, meta *typeMetadata) (reflect.Value, error)

// Provider resolves settings types against one Storage and keeps a single
// resolved instance per type. Callers observe the cached instance until a
// fresh Get replaces it.
type Provider struct {
	mu        sync.Mutex
	storage   Storage
	cfg       providerConfig
	protector Protector
	evaluator Evaluator
	emitter   *activity.Emitter
	suffix    string
	tier      string
	sparse    bool
	defaults  defaultSource
	cache     map[reflect.Type]reflect.Value
}

// NewProvider constructs a single tier provider. A nil store falls back to the
// roaming config folder DefaultAppFolder.
func NewProvider(store Storage, opts ...Option) *Provider {
	cfg := applyOptions(opts)
	return newProvider(resolveStorage(store), cfg, "", activity.TierOverride, cfg.persistDefaults)
}

func newProvider(store Storage, cfg providerConfig, suffix, tier string, persistAll bool) *Provider {
	protector := cfg.protector
	if protector == nil {
		protector = protect.NewAESGCM()
	}
	return &Provider{
		storage:   store,
		cfg:       cfg,
		protector: protector,
		evaluator: resolveEvaluator(cfg),
		emitter:   activity.NewEmitter(cfg.activityHooks, activity.Config{Enabled: true}),
		suffix:    suffix,
		tier:      tier,
		sparse:    !persistAll,
		cache:     make(map[reflect.Type]reflect.Value),
	}
}

func resolveStorage(store Storage) Storage {
	if store == nil {
		return storage.NewRoaming(DefaultAppFolder)
	}
	return store
}

// Storage returns the backend the provider reads and writes.
func (p *Provider) Storage() Storage {
	return p.storage
}

func (p *Provider) getSettings(ctx context.Context, t reflect.Type, fresh bool) (reflect.Value, error) {
	meta, err := metadataFor(t)
	if err != nil {
		return reflect.Value{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.get(ctx, meta, fresh)
}

func (p *Provider) saveSettings(ctx context.Context, value reflect.Value) error {
	meta, err := metadataFor(value.Type().Elem())
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.save(ctx, meta, value, !p.sparse)
}

func (p *Provider) resetSettings(ctx context.Context, t reflect.Type) (reflect.Value, error) {
	meta, err := metadataFor(t)
	if err != nil {
		return reflect.Value{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reset(ctx, meta)
}

func (p *Provider) repositoryKey(meta *typeMetadata) string {
	keyFunc := p.cfg.keyFunc
	if keyFunc == nil {
		keyFunc = defaultRepositoryKey
	}
	return keyFunc(meta.typ) + p.suffix
}

func (p *Provider) blobName(meta *typeMetadata) string {
	return p.repositoryKey(meta) + FileExtension
}

func (p *Provider) get(ctx context.Context, meta *typeMetadata, fresh bool) (reflect.Value, error) {
	if !fresh {
		if cached, ok := p.cache[meta.typ]; ok {
			return cached, nil
		}
	}

	start := time.Now()
	instance, err := p.defaultInstance(ctx, meta)
	if err == nil {
		err = p.load(ctx, meta, instance)
	}
	if err == nil {
		err = p.unprotectAll(meta, instance)
	}
	p.logEvent(OpGet, meta, start, 0, err)
	if err != nil {
		return reflect.Value{}, err
	}
	p.cache[meta.typ] = instance
	return instance, nil
}

func (p *Provider) defaultInstance(ctx context.Context, meta *typeMetadata) (reflect.Value, error) {
	if p.defaults != nil {
		return p.defaults(ctx, meta)
	}
	return p.computedDefaults(ctx, meta)
}

func (p *Provider) read(ctx context.Context, meta *typeMetadata) (string, bool, error) {
	content, ok, err := p.storage.Read(ctx, p.blobName(meta))
	if err != nil {
		return "", false, fmt.Errorf("settings: read %s: %w", p.repositoryKey(meta), err)
	}
	if !ok || strings.TrimSpace(content) == "" {
		return "", false, nil
	}
	return content, true, nil
}

// load overlays the persisted blob onto instance. A missing blob leaves
// instance untouched.
func (p *Provider) load(ctx context.Context, meta *typeMetadata, instance reflect.Value) error {
	content, ok, err := p.read(ctx, meta)
	if err != nil || !ok {
		return err
	}
	if err := codec.Merge(content, meta.fields(instance)); err != nil {
		return &DecodeError{RepositoryKey: p.repositoryKey(meta), Err: err}
	}
	return nil
}

// snapshot loads the persisted blob into a zero instance. Protected fields
// keep their persisted form.
func (p *Provider) snapshot(ctx context.Context, meta *typeMetadata) (reflect.Value, bool, error) {
	instance := reflect.New(meta.typ)
	content, ok, err := p.read(ctx, meta)
	if err != nil || !ok {
		return instance, false, err
	}
	if err := codec.Merge(content, meta.fields(instance)); err != nil {
		return reflect.Value{}, false, &DecodeError{RepositoryKey: p.repositoryKey(meta), Err: err}
	}
	return instance, true, nil
}

func (p *Provider) save(ctx context.Context, meta *typeMetadata, value reflect.Value, persistAll bool) error {
	keys, err := p.persist(ctx, meta, value, persistAll)
	if err != nil {
		return err
	}
	p.emit(ctx, activity.BuildSettingsSavedEvent(p.eventInput(meta, keys)))
	return nil
}

// persist writes value and returns the keys present in the written blob. Once
// the write succeeds the cached instance, or a fresh default instance when none
// exists, is updated in place and becomes the cache entry. A failed save leaves
// the cache untouched.
func (p *Provider) persist(ctx context.Context, meta *typeMetadata, value reflect.Value, persistAll bool) (keys []string, err error) {
	start := time.Now()
	defer func() {
		p.logEvent(OpSave, meta, start, len(keys), err)
	}()

	if !value.IsValid() || value.IsNil() {
		return nil, ErrNilSettings
	}
	if validator, ok := value.Interface().(interface{ Validate() error }); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("settings: validate %s: %w", meta.name, err)
		}
	}

	defaults, err := p.defaultInstance(ctx, meta)
	if err != nil {
		return nil, err
	}
	if err := p.unprotectAll(meta, defaults); err != nil {
		return nil, err
	}

	cached, ok := p.cache[meta.typ]
	next := clone.Value(defaults)
	if ok {
		next = clone.Value(cached)
	}

	doc := codec.NewDocument()
	for _, desc := range meta.descriptors {
		effective := value.Elem().FieldByIndex(desc.index)
		fallback := defaults.Elem().FieldByIndex(desc.index)
		if isNull(effective) {
			effective = fallback
		}
		effective = clone.Value(effective)
		next.Elem().FieldByIndex(desc.index).Set(effective)

		if !persistAll && codec.Equal(effective.Interface(), fallback.Interface()) {
			continue
		}
		out := effective.Interface()
		if desc.Protected {
			if out, err = p.protectedOutput(desc, effective); err != nil {
				return nil, err
			}
		}
		doc.Set(desc.Key, out)
	}

	text, err := codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("settings: encode %s: %w", p.repositoryKey(meta), err)
	}
	if err := p.storage.Write(ctx, p.blobName(meta), text); err != nil {
		return nil, fmt.Errorf("settings: write %s: %w", p.repositoryKey(meta), err)
	}

	if !ok {
		p.cache[meta.typ] = next
		return doc.Keys(), nil
	}
	for _, desc := range meta.descriptors {
		cached.Elem().FieldByIndex(desc.index).Set(next.Elem().FieldByIndex(desc.index))
	}
	return doc.Keys(), nil
}

// reset rewrites every field of the cached instance with its default and
// saves it sparsely. The instance stays the cache entry. A failed save leaves
// the cached instance unchanged.
func (p *Provider) reset(ctx context.Context, meta *typeMetadata) (reflect.Value, error) {
	start := time.Now()
	defaults, err := p.defaultInstance(ctx, meta)
	if err != nil {
		p.logEvent(OpReset, meta, start, 0, err)
		return reflect.Value{}, err
	}
	if err := p.unprotectAll(meta, defaults); err != nil {
		p.logEvent(OpReset, meta, start, 0, err)
		return reflect.Value{}, err
	}

	keys, err := p.persist(ctx, meta, defaults, false)
	p.logEvent(OpReset, meta, start, len(keys), err)
	if err != nil {
		return reflect.Value{}, err
	}
	p.emit(ctx, activity.BuildSettingsResetEvent(p.eventInput(meta, keys)))
	return p.cache[meta.typ], nil
}

func (p *Provider) eventInput(meta *typeMetadata, keys []string) activity.SettingsEventInput {
	if keys == nil {
		keys = []string{}
	}
	return activity.SettingsEventInput{
		TypeName:      meta.name,
		RepositoryKey: p.repositoryKey(meta),
		Tier:          p.tier,
		Keys:          keys,
		OccurredAt:    p.cfg.now(),
	}
}

// emit notifies activity hooks. The write has already happened, so hook
// failures are logged and not returned.
func (p *Provider) emit(ctx context.Context, event activity.Event) {
	if !p.emitter.Enabled() {
		return
	}
	if err := p.emitter.Emit(ctx, event); err != nil {
		p.cfg.log().LogEvent(LogEvent{
			Op:            event.Verb,
			Type:          fmt.Sprint(event.Metadata["type"]),
			RepositoryKey: event.ObjectID,
			Err:           fmt.Errorf("settings: activity hook: %w", err),
		})
	}
}

func (p *Provider) logEvent(op string, meta *typeMetadata, start time.Time, keys int, err error) {
	p.cfg.log().LogEvent(LogEvent{
		Op:            op,
		Type:          meta.name,
		RepositoryKey: p.repositoryKey(meta),
		Duration:      time.Since(start),
		Keys:          keys,
		Err:           err,
	})
}
