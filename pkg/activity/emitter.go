package activity

import (
	"context"
	"strings"
)

// Config controls activity emission for a settings provider.
type Config struct {
	Enabled bool
	// Channel is the base channel. Events from the default tier are routed
	// to "<Channel>.default".
	Channel string
}

// Emitter routes settings events to hooks on a per-tier channel.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	compacted := compactHooks(hooks)
	return &Emitter{
		hooks:   compacted,
		enabled: cfg.Enabled && len(compacted) > 0,
		channel: channel,
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled && len(e.hooks) > 0
}

// Emit forwards the event to all hooks. An explicit channel is kept,
// otherwise the channel is derived from the event tier.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = ChannelFor(e.channel, event.Tier())
	}
	return e.hooks.Notify(ctx, event)
}

// ChannelFor returns the channel for a repository tier. The override tier,
// which holds user-visible settings, uses the base channel.
func ChannelFor(base, tier string) string {
	tier = strings.TrimSpace(tier)
	if tier == "" || tier == TierOverride {
		return base
	}
	return base + "." + tier
}

func compactHooks(hooks Hooks) Hooks {
	if len(hooks) == 0 {
		return nil
	}
	compacted := make(Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			compacted = append(compacted, hook)
		}
	}
	return compacted
}
