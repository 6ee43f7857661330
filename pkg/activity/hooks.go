package activity

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"
)

// Event is a settings lifecycle occurrence fanned out to hooks. IDs are
// strings so call sites are not tied to a UUID type.
type Event struct {
	Verb           string
	ActorID        string
	UserID         string
	TenantID       string
	ObjectType     string
	ObjectID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	OccurredAt     time.Time
}

// Tier reports the repository tier recorded on the event, if any.
func (e Event) Tier() string {
	tier, _ := e.Metadata[metadataKeyTier].(string)
	return tier
}

// Keys reports the persisted keys recorded on the event. Nil means the event
// did not record a write.
func (e Event) Keys() []string {
	keys, _ := e.Metadata[metadataKeyKeys].([]string)
	return keys
}

// ActivityHook receives normalized settings events.
type ActivityHook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc allows plain functions to satisfy ActivityHook.
type HookFunc func(ctx context.Context, event Event) error

// Notify dispatches to the underlying function.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks fans out events to zero or more hooks.
type Hooks []ActivityHook

// Enabled reports whether there are any hooks to notify.
func (h Hooks) Enabled() bool {
	return len(h) > 0
}

// Notify normalizes the event and forwards it to every hook, joining their
// errors. Events that do not describe a settings repository are dropped.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}

	normalized := NormalizeEvent(event)
	if !IsSettingsEvent(normalized) {
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, normalized); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsSettingsEvent reports whether a normalized event carries a settings verb
// and names the repository it touched.
func IsSettingsEvent(event Event) bool {
	return strings.HasPrefix(event.Verb, verbPrefix) &&
		event.ObjectType == ObjectTypeSettings &&
		event.ObjectID != ""
}

// NormalizeEvent trims identifiers, clones metadata and recipients, and fills
// the object type, channel and timestamp when they are missing. The channel
// follows the tier recorded in the metadata.
func NormalizeEvent(event Event) Event {
	normalized := event
	normalized.Verb = strings.ToLower(strings.TrimSpace(event.Verb))
	normalized.ActorID = strings.TrimSpace(event.ActorID)
	normalized.UserID = strings.TrimSpace(event.UserID)
	normalized.TenantID = strings.TrimSpace(event.TenantID)
	normalized.ObjectType = strings.TrimSpace(event.ObjectType)
	if normalized.ObjectType == "" {
		normalized.ObjectType = ObjectTypeSettings
	}
	normalized.ObjectID = strings.TrimSpace(event.ObjectID)
	normalized.Channel = strings.TrimSpace(event.Channel)
	if normalized.Channel == "" {
		normalized.Channel = ChannelFor(DefaultChannel, event.Tier())
	}
	normalized.DefinitionCode = strings.TrimSpace(event.DefinitionCode)
	normalized.Metadata = cloneMap(event.Metadata)
	if keys := event.Keys(); keys != nil {
		normalized.Metadata[metadataKeyKeys] = append([]string{}, keys...)
	}
	if len(event.Recipients) > 0 {
		normalized.Recipients = append([]string{}, event.Recipients...)
	} else {
		normalized.Recipients = nil
	}
	if normalized.OccurredAt.IsZero() {
		normalized.OccurredAt = time.Now()
	}
	return normalized
}

func cloneMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
