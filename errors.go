package settings

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidType is returned when the settings type parameter is not a
	// named struct type.
	ErrInvalidType = errors.New("settings: settings type must be a named struct")
	// ErrNilSettings is returned by Save when handed a nil instance.
	ErrNilSettings = errors.New("settings: settings instance is nil")
	// ErrNoEvaluator is returned when a default expression cannot be
	// evaluated because no evaluator is available.
	ErrNoEvaluator = errors.New("settings: evaluator not configured")
)

// DecodeError reports a persisted blob that could not be applied to a
// settings instance.
type DecodeError struct {
	RepositoryKey string
	Err           error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: decode %s: %v", e.RepositoryKey, e.Err)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ProtectionError reports a failure to protect or unprotect a field value.
type ProtectionError struct {
	Field string
	Op    string
	Err   error
}

func (e *ProtectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: %s field %s: %v", e.Op, e.Field, e.Err)
}

func (e *ProtectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Field  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("settings: %s evaluator %s field=%s: %v", e.Engine, describeExpression(e.Expr), e.Field, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "settings:") {
		return err
	}
	return fmt.Errorf("settings: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, field string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Field == "" {
			evalErr.Field = field
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Field:  field,
		Err:    err,
	}
}
