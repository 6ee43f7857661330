// Package jsonschema renders settings types as JSON Schema documents using
// github.com/invopop/jsonschema. Properties are keyed by persisted settings
// keys in declaration order. Protected fields are marked write-only and never
// carry a default.
package jsonschema

import (
	"fmt"
	"reflect"

	invopop "github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	settings "github.com/goliatone/go-settings"
)

// ProtectedExtension is the schema extension set on protected properties.
const ProtectedExtension = "x-protected"

type generatorConfig struct {
	id          invopop.ID
	description string
	strict      bool
}

// GeneratorOption configures the JSON Schema generator.
type GeneratorOption func(*generatorConfig)

// WithID sets the $id of generated documents.
func WithID(id string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.id = invopop.ID(id)
	}
}

// WithDescription sets the root description. The type name is used as title.
func WithDescription(description string) GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.description = description
	}
}

// WithStrictProperties rejects keys that are not declared on the type.
func WithStrictProperties() GeneratorOption {
	return func(cfg *generatorConfig) {
		cfg.strict = true
	}
}

type generator struct {
	config generatorConfig
}

// NewGenerator constructs a JSON Schema generator.
func NewGenerator(opts ...GeneratorOption) settings.SchemaGenerator {
	cfg := generatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

// Option wires the JSON Schema generator into a provider.
func Option(opts ...GeneratorOption) settings.Option {
	return settings.WithSchemaGenerator(NewGenerator(opts...))
}

func (g generator) Generate(input settings.SchemaInput) (settings.SchemaDocument, error) {
	reflector := &invopop.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}

	root := &invopop.Schema{
		Version:     invopop.Version,
		ID:          g.config.id,
		Type:        "object",
		Title:       input.TypeName,
		Description: g.config.description,
		Properties:  orderedmap.New[string, *invopop.Schema](),
	}
	if g.config.strict {
		root.AdditionalProperties = invopop.FalseSchema
	}

	for _, field := range input.Fields {
		property, err := fieldSchema(reflector, field)
		if err != nil {
			return settings.SchemaDocument{}, fmt.Errorf("jsonschema: field %s: %w", field.Name, err)
		}
		root.Properties.Set(field.Key, property)
	}

	return settings.SchemaDocument{
		Format:   settings.SchemaFormatJSONSchema,
		Document: root,
	}, nil
}

func fieldSchema(reflector *invopop.Reflector, field settings.SchemaField) (*invopop.Schema, error) {
	if field.Type == nil {
		return nil, fmt.Errorf("missing type")
	}
	property := reflector.ReflectFromType(field.Type)
	property.Version = ""
	property.ID = ""
	property.Description = field.Description

	if field.Type.Kind() == reflect.Pointer {
		property = nullable(property)
	}
	if field.Protected {
		property.WriteOnly = true
		property.Extras = map[string]any{ProtectedExtension: true}
		return property, nil
	}
	property.Default = field.Default
	return property, nil
}

// nullable widens a pointer field schema to accept null, which persists as
// "use the default".
func nullable(schema *invopop.Schema) *invopop.Schema {
	if schema.Type == "" {
		return schema
	}
	return &invopop.Schema{
		Description: schema.Description,
		AnyOf: []*invopop.Schema{
			schema,
			{Type: "null"},
		},
	}
}
