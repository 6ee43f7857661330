package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/goliatone/go-settings/internal/clone"
)

// computedDefaults builds a fresh instance of meta.typ with every field at its
// computed default. Protected defaults are returned in protected form.
func (p *Provider) computedDefaults(_ context.Context, meta *typeMetadata) (reflect.Value, error) {
	instance := reflect.New(meta.typ)
	for _, desc := range meta.descriptors {
		value, err := p.defaultValue(meta, desc)
		if err != nil {
			return reflect.Value{}, err
		}
		field := instance.Elem().FieldByIndex(desc.index)
		field.Set(value)
		if desc.Protected {
			if err := p.protectField(desc, field); err != nil {
				return reflect.Value{}, err
			}
		}
	}
	return instance, nil
}

// defaultValue resolves the plaintext default of one field: the default
// expression, then the literal default, then the structural default.
func (p *Provider) defaultValue(meta *typeMetadata, desc Descriptor) (reflect.Value, error) {
	if desc.DefaultExpr != "" {
		return p.evaluateDefault(meta, desc)
	}
	if desc.hasDefault {
		return clone.Value(desc.literal), nil
	}
	return structuralDefault(desc.Type), nil
}

// structuralDefault is an empty slice for slice types and the zero value
// otherwise, which is nil for pointers, maps and interfaces.
func structuralDefault(t reflect.Type) reflect.Value {
	if t.Kind() == reflect.Slice {
		return reflect.MakeSlice(t, 0, 0)
	}
	return reflect.Zero(t)
}

func (p *Provider) evaluateDefault(meta *typeMetadata, desc Descriptor) (reflect.Value, error) {
	if p.evaluator == nil {
		return reflect.Value{}, fmt.Errorf("%w: %s.%s", ErrNoEvaluator, meta.name, desc.Name)
	}
	ctx := ExprContext{
		Type:  meta.name,
		Field: desc.Name,
		Key:   desc.Key,
		Args:  p.cfg.defaultArgs,
	}.withDefaults(p.cfg.now)

	start := time.Now()
	result, err := p.evaluator.Evaluate(ctx, desc.DefaultExpr)
	err = wrapEvaluationError(evaluatorEngineName(p.evaluator), desc.DefaultExpr, ctx.label(), err)
	p.cfg.log().LogEvent(LogEvent{
		Op:            OpEvaluate,
		Type:          meta.name,
		RepositoryKey: p.repositoryKey(meta),
		Duration:      time.Since(start),
		Err:           err,
	})
	if err != nil {
		return reflect.Value{}, err
	}
	value, err := convertResult(result, desc.Type)
	if err != nil {
		return reflect.Value{}, wrapEvaluationError(evaluatorEngineName(p.evaluator), desc.DefaultExpr, ctx.label(), err)
	}
	return value, nil
}

// convertResult coerces an evaluator result into t. Assignable values are used
// as is, numbers are converted between numeric kinds and anything else goes
// through JSON.
func convertResult(result any, t reflect.Type) (reflect.Value, error) {
	if result == nil {
		return structuralDefault(t), nil
	}
	rv := reflect.ValueOf(result)
	if rv.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}
	if isNumeric(rv.Kind()) && isNumeric(t.Kind()) {
		return rv.Convert(t), nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("convert %T to %v: %w", result, t, err)
	}
	target := reflect.New(t)
	if err := json.Unmarshal(raw, target.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("convert %T to %v: %w", result, t, err)
	}
	return target.Elem(), nil
}

func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// isNull reports whether v holds no value: a nil pointer, slice, map or
// interface. Value kinds are never null.
func isNull(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

func resolveEvaluator(cfg providerConfig) Evaluator {
	if cfg.evaluator != nil {
		return cfg.evaluator
	}
	var exprOpts []ExprEvaluatorOption
	if cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cfg.programCache))
	}
	if cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
	}
	return NewExprEvaluator(exprOpts...)
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		switch fmt.Sprintf("%T", e) {
		case "*settings.jsEvaluator", "settings.unavailableJSEvaluator":
			return "js"
		}
		return "custom"
	}
}
