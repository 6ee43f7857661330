package activity

import (
	"strings"
	"time"
)

// Verbs emitted by settings providers.
const (
	VerbSettingsSaved    = "settings.saved"
	VerbSettingsReset    = "settings.reset"
	VerbDefaultsSynced   = "settings.defaults.synced"
	ObjectTypeSettings   = "settings"
	DefaultChannel       = "settings"
	TierOverride         = "override"
	TierDefault          = "default"
	verbPrefix           = "settings."
	metadataKeyType      = "type"
	metadataKeyRepo      = "repository"
	metadataKeyTier      = "tier"
	metadataKeyKeys      = "keys"
	metadataKeyKeysCount = "keys_count"
)

// SettingsEventInput describes the common fields for settings lifecycle
// events. Keys lists the persisted keys that were written; values are never
// carried.
type SettingsEventInput struct {
	ActorID        string
	UserID         string
	TenantID       string
	Channel        string
	DefinitionCode string
	Recipients     []string
	Metadata       map[string]any
	TypeName       string
	RepositoryKey  string
	Tier           string
	Keys           []string
	OccurredAt     time.Time
}

// BuildSettingsSavedEvent constructs an activity event for a persisted save.
func BuildSettingsSavedEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbSettingsSaved, input)
}

// BuildSettingsResetEvent constructs an activity event for a reset to
// defaults.
func BuildSettingsResetEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbSettingsReset, input)
}

// BuildDefaultsSyncedEvent constructs an activity event for a default
// repository that was rewritten during reconciliation.
func BuildDefaultsSyncedEvent(input SettingsEventInput) Event {
	return buildSettingsEvent(VerbDefaultsSynced, input)
}

func buildSettingsEvent(verb string, input SettingsEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.TypeName != "" {
		metadata = ensureMetadata(metadata)
		metadata[metadataKeyType] = input.TypeName
	}
	if input.RepositoryKey != "" {
		metadata = ensureMetadata(metadata)
		metadata[metadataKeyRepo] = input.RepositoryKey
	}
	if input.Tier != "" {
		metadata = ensureMetadata(metadata)
		metadata[metadataKeyTier] = input.Tier
	}
	if input.Keys != nil {
		metadata = ensureMetadata(metadata)
		metadata[metadataKeyKeys] = append([]string{}, input.Keys...)
		metadata[metadataKeyKeysCount] = len(input.Keys)
	}

	recipients := input.Recipients
	if len(recipients) > 0 {
		recipients = append([]string{}, input.Recipients...)
	}

	objectID := strings.TrimSpace(input.RepositoryKey)
	if objectID == "" {
		objectID = strings.TrimSpace(input.TypeName)
	}
	if objectID == "" {
		objectID = ObjectTypeSettings
	}

	return Event{
		Verb:           verb,
		ActorID:        strings.TrimSpace(input.ActorID),
		UserID:         strings.TrimSpace(input.UserID),
		TenantID:       strings.TrimSpace(input.TenantID),
		ObjectType:     ObjectTypeSettings,
		ObjectID:       objectID,
		Channel:        strings.TrimSpace(input.Channel),
		DefinitionCode: strings.TrimSpace(input.DefinitionCode),
		Recipients:     recipients,
		Metadata:       metadata,
		OccurredAt:     input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
