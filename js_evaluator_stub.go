//go:build !js_eval

package settings

import "fmt"

// NewJSEvaluator returns an evaluator that fails with ErrNoEvaluator unless
// the module is built with the js_eval tag.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return unavailableJSEvaluator{}
}

type unavailableJSEvaluator struct{}

func (unavailableJSEvaluator) Evaluate(ExprContext, string) (any, error) {
	return nil, fmt.Errorf("%w: js evaluator requires the js_eval build tag", ErrNoEvaluator)
}

func jsEvaluatorAvailable() bool {
	return false
}
