package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-settings/internal/codec"
)

// Tiers reported in a Trace, lowest precedence first.
const (
	TierComputed          = "computed"
	TierDefaultRepository = "default"
	TierOverride          = "override"
)

// Trace captures provenance for one persisted key across the computed
// defaults and both repositories of a LayeredProvider.
type Trace struct {
	Type   string       `json:"type"`
	Key    string       `json:"key"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how one tier contributed to a traced key. Protected
// values are never included; Redacted marks them instead.
type Provenance struct {
	Tier          string          `json:"tier"`
	RepositoryKey string          `json:"repository_key,omitempty"`
	Value         json.RawMessage `json:"value,omitempty"`
	Found         bool            `json:"found"`
	Redacted      bool            `json:"redacted,omitempty"`
}

// Effective returns the highest precedence layer that provides a value.
func (t Trace) Effective() (Provenance, bool) {
	for i := len(t.Layers) - 1; i >= 0; i-- {
		if t.Layers[i].Found {
			return t.Layers[i], true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

func (lp *LayeredProvider) trace(ctx context.Context, meta *typeMetadata, key string) (Trace, error) {
	var desc *Descriptor
	for i := range meta.descriptors {
		if strings.EqualFold(meta.descriptors[i].Key, key) {
			desc = &meta.descriptors[i]
			break
		}
	}
	if desc == nil {
		return Trace{}, fmt.Errorf("settings: %s has no key %q", meta.name, key)
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()

	trace := Trace{Type: meta.name, Key: desc.Key}

	computed := Provenance{Tier: TierComputed, Found: true, Redacted: desc.Protected}
	if !desc.Protected {
		value, err := lp.defaults.provider.defaultValue(meta, *desc)
		if err != nil {
			return Trace{}, err
		}
		if computed.Value, err = json.Marshal(value.Interface()); err != nil {
			return Trace{}, fmt.Errorf("settings: encode default %s: %w", desc.Key, err)
		}
	}
	trace.Layers = append(trace.Layers, computed)

	for _, p := range []*Provider{lp.defaults.provider, lp.overrides} {
		layer := Provenance{Tier: p.tier, RepositoryKey: p.repositoryKey(meta)}
		content, ok, err := p.read(ctx, meta)
		if err != nil {
			return Trace{}, err
		}
		if ok {
			if raw, found := codec.Lookup(content, desc.Key); found {
				layer.Found = true
				if desc.Protected {
					layer.Redacted = true
				} else {
					layer.Value = raw
				}
			}
		}
		trace.Layers = append(trace.Layers, layer)
	}
	return trace, nil
}
