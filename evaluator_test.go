package settings

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-settings/pkg/storage"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEvaluator(opts...)
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEvaluator(opts...)
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []JSEvaluatorOption{}
			if cache != nil {
				opts = append(opts, JSWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, JSWithFunctionRegistry(registry))
			}
			return NewJSEvaluator(opts...)
		},
	},
}

func skipUnavailable(t *testing.T, name string) {
	t.Helper()
	if name == "js" && !jsEvaluatorAvailable() {
		t.Skip("js evaluator requires the js_eval build tag")
	}
}

type computed struct {
	Answer int `defaultExpr:"2 * 21"`
	Region string
	Plain  string `default:"literal"`
}

func TestEvaluatorsComputeDefaults(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			provider := NewProvider(storage.NewMemory(), WithEvaluator(factory.new(nil, nil)))

			got, err := Get[computed](context.Background(), provider, false)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Answer != 42 {
				t.Fatalf("expected computed default 42, got %d", got.Answer)
			}
			if got.Plain != "literal" {
				t.Fatalf("expected literal default, got %q", got.Plain)
			}
		})
	}
}

func TestEvaluatorsBindContext(t *testing.T) {
	cases := []struct {
		name string
		rule string
		want any
	}{
		{name: "args", rule: "args.region", want: "eu-west"},
		{name: "key", rule: `key + "-suffix"`, want: "theme-suffix"},
		{name: "field", rule: `field == "Theme"`, want: true},
		{name: "typeName", rule: `typeName + "." + field`, want: "Prefs.Theme"},
	}

	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			evaluator := factory.new(nil, nil)
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					ctx := ExprContext{
						Type:  "Prefs",
						Field: "Theme",
						Key:   "theme",
						Args:  map[string]any{"region": "eu-west"},
					}.withDefaults(time.Now)
					got, err := evaluator.Evaluate(ctx, tc.rule)
					if err != nil {
						t.Fatalf("evaluate %q: %v", tc.rule, err)
					}
					if got != tc.want {
						t.Fatalf("expected %v, got %v (%T)", tc.want, got, got)
					}
				})
			}
		})
	}
}

func TestEvaluatorsRejectEmptyExpression(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			if _, err := factory.new(nil, nil).Evaluate(ExprContext{}, ""); err == nil {
				t.Fatalf("expected error for empty expression")
			}
		})
	}
}

func TestEvaluatorProgramCache(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			cache := &fakeProgramCache{}
			evaluator := factory.new(cache, nil)

			for i := 0; i < 3; i++ {
				if _, err := evaluator.Evaluate(ExprContext{}.withDefaults(time.Now), "1 + 1"); err != nil {
					t.Fatalf("unexpected error on iteration %d: %v", i, err)
				}
			}
			if cache.misses != 1 {
				t.Fatalf("expected one cache miss, got %d", cache.misses)
			}
			if cache.hits != 2 {
				t.Fatalf("expected two cache hits, got %d", cache.hits)
			}
		})
	}
}

func TestSharedProgramCacheReachesDefaultEvaluator(t *testing.T) {
	cache := &fakeProgramCache{}
	provider := NewProvider(storage.NewMemory(), WithProgramCache(cache))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := Get[computed](ctx, provider, true); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if cache.misses != 1 || cache.hits != 1 {
		t.Fatalf("expected 1 miss and 1 hit, got %d and %d", cache.misses, cache.hits)
	}
}

func TestCustomFunctionsAcrossEvaluators(t *testing.T) {
	rules := map[string]string{
		"expr": `double(21)`,
		"cel":  `call("double", [21])`,
		"js":   `double(21)`,
	}

	registry := NewFunctionRegistry()
	if err := registry.Register("double", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("double expects 1 arg")
		}
		switch n := args[0].(type) {
		case int:
			return n * 2, nil
		case int64:
			return n * 2, nil
		case float64:
			return n * 2, nil
		default:
			return nil, fmt.Errorf("double: unsupported %T", args[0])
		}
	}); err != nil {
		t.Fatalf("register double: %v", err)
	}

	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			skipUnavailable(t, factory.name)
			evaluator := factory.new(nil, registry)
			got, err := evaluator.Evaluate(ExprContext{}.withDefaults(time.Now), rules[factory.name])
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			value, err := convertResult(got, reflect.TypeFor[int]())
			if err != nil {
				t.Fatalf("convert %T: %v", got, err)
			}
			if value.Int() != 42 {
				t.Fatalf("expected 42, got %v", got)
			}
		})
	}
}

func TestFunctionRegistryRejectsDuplicates(t *testing.T) {
	registry := NewFunctionRegistry()
	noop := func(...any) (any, error) { return nil, nil }
	if err := registry.Register("Slug", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("slug", noop); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register("", noop); err == nil {
		t.Fatalf("expected empty name to fail")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Fatalf("expected nil function to fail")
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected unknown function to fail")
	}

	clone := registry.Clone()
	if err := clone.Register("other", noop); err != nil {
		t.Fatalf("register on clone: %v", err)
	}
	if len(registry.Names()) != 1 || len(clone.Names()) != 2 {
		t.Fatalf("expected clone to be independent, got %v and %v", registry.Names(), clone.Names())
	}
}

type slugged struct {
	Slug string `defaultExpr:"slug(field)"`
}

func TestWithCustomFunctionReachesDefaultEvaluator(t *testing.T) {
	provider := NewProvider(storage.NewMemory(), WithCustomFunction("slug", func(args ...any) (any, error) {
		name, _ := args[0].(string)
		return "app-" + strings.ToLower(name), nil
	}))

	got, err := Get[slugged](context.Background(), provider, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Slug != "app-slug" {
		t.Fatalf("expected slug from custom function, got %q", got.Slug)
	}
}

type stamped struct {
	Created time.Time `defaultExpr:"now"`
	Region  string    `defaultExpr:"args.region"`
}

func TestDefaultExpressionsSeeClockAndArgs(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := NewProvider(storage.NewMemory(),
		WithEvaluator(NewCELEvaluator()),
		WithClock(func() time.Time { return fixed }),
		WithDefaultArgs(map[string]any{"region": "us-east"}),
	)

	got, err := Get[stamped](context.Background(), provider, false)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Created.Equal(fixed) {
		t.Fatalf("expected clock time %v, got %v", fixed, got.Created)
	}
	if got.Region != "us-east" {
		t.Fatalf("expected region from args, got %q", got.Region)
	}
}

type broken struct {
	Value int `defaultExpr:"2 *"`
}

func TestInvalidDefaultExpressionReturnsEvaluationError(t *testing.T) {
	var events []LogEvent
	provider := NewProvider(storage.NewMemory(), WithLogger(LoggerFunc(func(event LogEvent) {
		events = append(events, event)
	})))

	_, err := Get[broken](context.Background(), provider, false)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != "expr" || evalErr.Expr != "2 *" || evalErr.Field != "broken.Value" {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}

	var sawEvaluate bool
	for _, event := range events {
		if event.Op == OpEvaluate && event.Err != nil {
			sawEvaluate = true
		}
	}
	if !sawEvaluate {
		t.Fatalf("expected failed evaluate log event, got %+v", events)
	}
}

type mismatched struct {
	Count int `defaultExpr:"'text'"`
}

func TestDefaultExpressionResultMustConvert(t *testing.T) {
	provider := NewProvider(storage.NewMemory(), WithEvaluator(NewCELEvaluator()))
	_, err := Get[mismatched](context.Background(), provider, false)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "cel" {
		t.Fatalf("expected cel EvaluationError, got %v", err)
	}
}

func TestUnavailableJSEvaluatorReportsErrNoEvaluator(t *testing.T) {
	if jsEvaluatorAvailable() {
		t.Skip("js evaluator compiled in")
	}
	provider := NewProvider(storage.NewMemory(), WithEvaluator(NewJSEvaluator()))
	_, err := Get[computed](context.Background(), provider, false)
	if !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "js" {
		t.Fatalf("expected js EvaluationError, got %v", err)
	}
}

func TestCapturingEvaluatorReceivesFieldContext(t *testing.T) {
	capture := &capturingEvaluator{}
	provider := NewProvider(storage.NewMemory(),
		WithEvaluator(capture),
		WithDefaultArgs(map[string]any{"tenant": "acme"}),
	)
	if _, err := Get[computed](context.Background(), provider, false); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(capture.contexts) != 1 {
		t.Fatalf("expected one evaluation, got %d", len(capture.contexts))
	}
	got := capture.contexts[0]
	if got.Type != "computed" || got.Field != "Answer" || got.Key != "Answer" {
		t.Fatalf("unexpected context %+v", got)
	}
	if got.Now == nil {
		t.Fatalf("expected context to carry a timestamp")
	}
	if got.Args["tenant"] != "acme" {
		t.Fatalf("expected default args, got %v", got.Args)
	}
}

type fakeProgramCache struct {
	store  map[string]any
	hits   int
	misses int
}

func (c *fakeProgramCache) Get(key string) (any, bool) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	value, ok := c.store[key]
	if ok {
		c.hits++
		return value, true
	}
	c.misses++
	return nil, false
}

func (c *fakeProgramCache) Set(key string, value any) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = value
}

type capturingEvaluator struct {
	contexts []ExprContext
}

func (c *capturingEvaluator) Evaluate(ctx ExprContext, _ string) (any, error) {
	c.contexts = append(c.contexts, ctx)
	return 7, nil
}
