package settings

import "sync"

// ProgramCache stores compiled expression programs keyed by engine and
// expression text.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// WithProgramCache shares a program cache with the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *providerConfig) {
		cfg.programCache = cache
	}
}

// NewProgramCache returns an unbounded ProgramCache safe for concurrent use.
func NewProgramCache() ProgramCache {
	return &syncProgramCache{}
}

type syncProgramCache struct {
	programs sync.Map
}

func (c *syncProgramCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

func (c *syncProgramCache) Set(key string, value any) {
	c.programs.Store(key, value)
}
