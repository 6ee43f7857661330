package settings

import (
	"context"
	"reflect"
)

// SchemaFormat identifies the representation a schema document encodes.
type SchemaFormat string

const (
	// SchemaFormatDescriptors represents the flat field descriptor list.
	SchemaFormatDescriptors SchemaFormat = "descriptors"
	// SchemaFormatJSONSchema represents a JSON Schema document.
	SchemaFormatJSONSchema SchemaFormat = "jsonschema"
)

// SchemaDocument encapsulates a generated schema alongside its format. Document
// must be JSON serialisable.
type SchemaDocument struct {
	Format   SchemaFormat
	Document any
}

// SchemaField describes one persisted field handed to a SchemaGenerator.
// Default is the plaintext default and is always nil for protected fields.
type SchemaField struct {
	Name        string
	Key         string
	Type        reflect.Type
	Protected   bool
	Description string
	Default     any
}

// SchemaInput is everything a SchemaGenerator needs to describe a type.
type SchemaInput struct {
	TypeName      string
	RepositoryKey string
	Type          reflect.Type
	Fields        []SchemaField
}

// SchemaGenerator transforms a settings type description into a schema
// document. Implementations must be safe for concurrent use.
type SchemaGenerator interface {
	Generate(input SchemaInput) (SchemaDocument, error)
}

// FieldDescriptor is one entry of the default descriptor schema.
type FieldDescriptor struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Protected   bool   `json:"protected,omitempty"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// DefaultSchemaGenerator returns the built-in descriptor-based schema generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(input SchemaInput) (SchemaDocument, error) {
	descriptors := make([]FieldDescriptor, 0, len(input.Fields))
	for _, field := range input.Fields {
		descriptors = append(descriptors, FieldDescriptor{
			Key:         field.Key,
			Type:        typeName(field.Type),
			Protected:   field.Protected,
			Description: field.Description,
			Default:     field.Default,
		})
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: descriptors,
	}, nil
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}

func (p *Provider) describe(ctx context.Context, t reflect.Type) (SchemaInput, SchemaGenerator, error) {
	meta, err := metadataFor(t)
	if err != nil {
		return SchemaInput{}, nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	input, err := p.schemaInput(ctx, meta)
	return input, p.cfg.schema(), err
}

func (lp *LayeredProvider) describe(ctx context.Context, t reflect.Type) (SchemaInput, SchemaGenerator, error) {
	meta, err := metadataFor(t)
	if err != nil {
		return SchemaInput{}, nil, err
	}
	lp.mu.Lock()
	defer lp.mu.Unlock()
	input, err := lp.overrides.schemaInput(ctx, meta)
	return input, lp.overrides.cfg.schema(), err
}

func (p *Provider) schemaInput(ctx context.Context, meta *typeMetadata) (SchemaInput, error) {
	defaults, err := p.defaultInstance(ctx, meta)
	if err != nil {
		return SchemaInput{}, err
	}
	if err := p.unprotectAll(meta, defaults); err != nil {
		return SchemaInput{}, err
	}
	input := SchemaInput{
		TypeName:      meta.name,
		RepositoryKey: p.repositoryKey(meta),
		Type:          meta.typ,
		Fields:        make([]SchemaField, 0, len(meta.descriptors)),
	}
	for _, desc := range meta.descriptors {
		field := SchemaField{
			Name:        desc.Name,
			Key:         desc.Key,
			Type:        desc.Type,
			Protected:   desc.Protected,
			Description: desc.Description,
		}
		if !desc.Protected {
			field.Default = defaults.Elem().FieldByIndex(desc.index).Interface()
		}
		input.Fields = append(input.Fields, field)
	}
	return input, nil
}
