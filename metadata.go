package settings

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"
)

const (
	tagSettings    = "settings"
	tagDefault     = "default"
	tagDefaultExpr = "defaultExpr"
	tagDescription = "desc"
	optProtected   = "protected"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Descriptor describes one persisted field of a settings type.
type Descriptor struct {
	// Name is the Go field name.
	Name string
	// Key is the persisted key, Name unless overridden by the settings tag.
	Key         string
	Type        reflect.Type
	Protected   bool
	Description string
	// Default holds the raw default tag, DefaultExpr the defaultExpr tag.
	Default     string
	DefaultExpr string

	index      []int
	hasDefault bool
	literal    reflect.Value
}

// HasDefault reports whether the field declares an explicit default.
func (d Descriptor) HasDefault() bool {
	return d.hasDefault || d.DefaultExpr != ""
}

type typeMetadata struct {
	typ         reflect.Type
	name        string
	descriptors []Descriptor
}

var metadataCache sync.Map

// Descriptors returns the persisted field descriptors of T in declaration
// order. Descriptor sets are computed once per type.
func Descriptors[T any]() ([]Descriptor, error) {
	meta, err := metadataFor(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return append([]Descriptor(nil), meta.descriptors...), nil
}

func metadataFor(t reflect.Type) (*typeMetadata, error) {
	if t == nil || t.Kind() != reflect.Struct || t.Name() == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidType, t)
	}
	if cached, ok := metadataCache.Load(t); ok {
		return cached.(*typeMetadata), nil
	}
	meta, err := readMetadata(t)
	if err != nil {
		return nil, err
	}
	actual, _ := metadataCache.LoadOrStore(t, meta)
	return actual.(*typeMetadata), nil
}

func readMetadata(t reflect.Type) (*typeMetadata, error) {
	meta := &typeMetadata{typ: t, name: t.Name()}
	seen := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get(tagSettings)
		if tag == "-" {
			continue
		}
		desc := Descriptor{
			Name:        field.Name,
			Key:         field.Name,
			Type:        field.Type,
			Description: field.Tag.Get(tagDescription),
			DefaultExpr: field.Tag.Get(tagDefaultExpr),
			index:       field.Index,
		}
		if tag != "" {
			parts := strings.Split(tag, ",")
			if key := strings.TrimSpace(parts[0]); key != "" {
				desc.Key = key
			}
			for _, opt := range parts[1:] {
				if strings.TrimSpace(opt) == optProtected {
					desc.Protected = true
				}
			}
		}
		if other, dup := seen[strings.ToLower(desc.Key)]; dup {
			return nil, fmt.Errorf("%w: %s fields %s and %s share key %q", ErrInvalidType, t.Name(), other, field.Name, desc.Key)
		}
		seen[strings.ToLower(desc.Key)] = field.Name

		if literal, ok := field.Tag.Lookup(tagDefault); ok {
			value, err := parseLiteral(field.Type, literal)
			if err != nil {
				return nil, fmt.Errorf("settings: %s.%s default %q: %w", t.Name(), field.Name, literal, err)
			}
			desc.Default = literal
			desc.hasDefault = true
			desc.literal = value
		}
		meta.descriptors = append(meta.descriptors, desc)
	}
	return meta, nil
}

func parseLiteral(t reflect.Type, literal string) (reflect.Value, error) {
	switch {
	case t.Kind() == reflect.String:
		return reflect.ValueOf(literal).Convert(t), nil
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.String:
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(reflect.ValueOf(literal).Convert(t.Elem()))
		return ptr, nil
	case t == durationType:
		if d, err := time.ParseDuration(literal); err == nil {
			return reflect.ValueOf(d), nil
		}
	}
	target := reflect.New(t)
	if err := json.Unmarshal([]byte(literal), target.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return target.Elem(), nil
}

// defaultRepositoryKey sanitizes the type name so that instantiated generic
// types still map to a single file name.
func defaultRepositoryKey(t reflect.Type) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, t.Name())
}

func (m *typeMetadata) fields(instance reflect.Value) map[string]reflect.Value {
	fields := make(map[string]reflect.Value, len(m.descriptors))
	for _, desc := range m.descriptors {
		fields[desc.Key] = instance.Elem().FieldByIndex(desc.index)
	}
	return fields
}
