// Package codec turns settings values into canonical JSON blobs and overlays
// persisted blobs onto existing instances.
//
// Encoding includes null fields and escapes HTML-sensitive characters.
// Decoding never replaces the target instance: only keys present in the blob
// are written, null values and unknown keys are ignored.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrMalformed indicates a blob that is not a JSON object.
var ErrMalformed = errors.New("codec: malformed document")

// Fields maps persisted keys to addressable fields of one target instance.
type Fields map[string]reflect.Value

func (f Fields) lookup(key string) (reflect.Value, bool) {
	if field, ok := f[key]; ok {
		return field, true
	}
	for candidate, field := range f {
		if strings.EqualFold(candidate, key) {
			return field, true
		}
	}
	return reflect.Value{}, false
}

// Document is an ordered key/value set used for sparse saves. Keys keep their
// insertion order in the encoded blob.
type Document struct {
	pairs *orderedmap.OrderedMap[string, any]
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{pairs: orderedmap.New[string, any]()}
}

// Set stores value under key, keeping the original position when key already
// exists.
func (d *Document) Set(key string, value any) {
	d.pairs.Set(key, value)
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	return d.pairs.Get(key)
}

// Len reports the number of keys.
func (d *Document) Len() int {
	return d.pairs.Len()
}

// Keys returns keys in insertion order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.pairs.Len())
	for pair := d.pairs.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// MarshalJSON encodes the document as a JSON object in insertion order.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.pairs.MarshalJSON()
}

// Marshal encodes value as indented JSON with null fields included and HTML
// characters escaped.
func Marshal(value any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		return "", fmt.Errorf("codec: encode: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Equal reports structural equality by comparing canonical encodings. Values
// that cannot be encoded fall back to reflect.DeepEqual.
func Equal(a, b any) bool {
	rawA, errA := json.Marshal(a)
	rawB, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(rawA, rawB)
}

// Merge overlays the keys present in text onto fields. Empty or
// whitespace-only text is a no-op. Keys are matched exactly first, then
// case-insensitively; unmatched keys are skipped.
func Merge(text string, fields Fields) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if !gjson.Valid(text) {
		return fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.Parse(text)
	if !root.IsObject() {
		return fmt.Errorf("%w: expected object, got %s", ErrMalformed, root.Type)
	}

	var mergeErr error
	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Null {
			return true
		}
		field, ok := fields.lookup(key.String())
		if !ok {
			return true
		}
		if !field.CanAddr() {
			mergeErr = fmt.Errorf("codec: key %q resolves to an unaddressable field", key.String())
			return false
		}
		if err := json.Unmarshal([]byte(value.Raw), field.Addr().Interface()); err != nil {
			mergeErr = fmt.Errorf("codec: decode key %q: %w", key.String(), err)
			return false
		}
		return true
	})
	return mergeErr
}

// Lookup returns the raw JSON stored under key in text, if present and not
// null.
func Lookup(text, key string) (json.RawMessage, bool) {
	if strings.TrimSpace(text) == "" || !gjson.Valid(text) {
		return nil, false
	}
	value := gjson.Get(text, escapePath(key))
	if !value.Exists() || value.Type == gjson.Null {
		return nil, false
	}
	return json.RawMessage(value.Raw), true
}

// Set stores raw JSON under key in text and returns the updated document.
// Empty text starts a new object. Other keys keep their position and format.
func Set(text, key string, raw json.RawMessage) (string, error) {
	if strings.TrimSpace(text) == "" {
		text = "{}"
	}
	if !gjson.Valid(text) || !gjson.Parse(text).IsObject() {
		return "", fmt.Errorf("%w: expected object", ErrMalformed)
	}
	if !gjson.ValidBytes(raw) {
		return "", fmt.Errorf("codec: value for key %q is not valid JSON", key)
	}
	out, err := sjson.SetRaw(text, escapePath(key), string(raw))
	if err != nil {
		return "", fmt.Errorf("codec: set key %q: %w", key, err)
	}
	return out, nil
}

// escapePath escapes gjson path syntax so key is matched literally.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
