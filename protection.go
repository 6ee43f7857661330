package settings

import (
	"reflect"
)

const (
	opProtect   = "protect"
	opUnprotect = "unprotect"
)

// protectable reports whether protection applies to fields of type t.
func protectable(t reflect.Type) bool {
	if t.Kind() == reflect.String {
		return true
	}
	return t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.String
}

// protectField replaces the plaintext held by field with its protected form.
// A pointed-to string is never modified in place.
func (p *Provider) protectField(desc Descriptor, field reflect.Value) error {
	return p.transformField(desc, field, opProtect)
}

func (p *Provider) unprotectField(desc Descriptor, field reflect.Value) error {
	return p.transformField(desc, field, opUnprotect)
}

func (p *Provider) transformField(desc Descriptor, field reflect.Value, op string) error {
	if !desc.Protected || !protectable(desc.Type) {
		return nil
	}
	target := field
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			return nil
		}
		target = reflect.New(field.Type().Elem()).Elem()
		target.Set(field.Elem())
	}
	text := target.String()
	if text == "" {
		return nil
	}
	out, err := p.transform(desc, text, op)
	if err != nil {
		return err
	}
	target.SetString(out)
	if field.Kind() == reflect.Pointer {
		field.Set(target.Addr())
	}
	return nil
}

func (p *Provider) transform(desc Descriptor, text, op string) (string, error) {
	var (
		out string
		err error
	)
	if op == opProtect {
		out, err = p.protector.Protect(text, p.cfg.keyMaterial())
	} else {
		out, err = p.protector.Unprotect(text, p.cfg.keyMaterial())
	}
	if err != nil {
		return "", &ProtectionError{Field: desc.Name, Op: op, Err: err}
	}
	return out, nil
}

// unprotectAll decrypts every protected field of instance in place.
func (p *Provider) unprotectAll(meta *typeMetadata, instance reflect.Value) error {
	for _, desc := range meta.descriptors {
		if err := p.unprotectField(desc, instance.Elem().FieldByIndex(desc.index)); err != nil {
			return err
		}
	}
	return nil
}

// protectAll encrypts every protected field of instance in place.
func (p *Provider) protectAll(meta *typeMetadata, instance reflect.Value) error {
	for _, desc := range meta.descriptors {
		if err := p.protectField(desc, instance.Elem().FieldByIndex(desc.index)); err != nil {
			return err
		}
	}
	return nil
}

// protectedOutput returns the value to persist for a protected field.
func (p *Provider) protectedOutput(desc Descriptor, value reflect.Value) (any, error) {
	out := reflect.New(value.Type()).Elem()
	out.Set(value)
	if err := p.protectField(desc, out); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}
