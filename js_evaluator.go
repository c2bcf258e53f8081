//go:build js_eval

package registry

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

// NewJSEvaluator constructs an Evaluator backed by goja. Every evaluation
// runs in a fresh runtime.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	cfg := applyJSEvaluatorOptions(opts)
	return &jsEvaluator{
		cache:     cfg.cache,
		functions: cfg.functions,
	}
}

func (e *jsEvaluator) Engine() string { return "js" }

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, expression, program)
}

func (e *jsEvaluator) Compile(expression string) (CompiledRule, error) {
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &jsCompiledRule{evaluator: e, expression: expression, program: program}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("js", fmt.Errorf("expression must not be empty"))
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get("js:" + expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", wrapExpression(expression), false)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set("js:"+expression, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx RuleContext, expression string, program *goja.Program) (any, error) {
	ctx = ctx.withDefaults()
	vm := goja.New()
	if err := e.inject(vm, ctx); err != nil {
		return nil, wrapEvaluationError("js", expression, ctx.Path, err)
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, ctx.Path, err)
	}
	return value.Export(), nil
}

func (e *jsEvaluator) inject(vm *goja.Runtime, ctx RuleContext) error {
	values := map[string]any{}
	for key, value := range ctx.snapshotMap() {
		values[key] = value
	}
	values["now"] = ctx.timestamp()
	values["args"] = ctx.Args
	values["metadata"] = ctx.Metadata
	values["path"] = ctx.Path
	if e.functions != nil {
		values["call"] = func(name string, arguments ...any) (any, error) {
			return e.functions.Call(name, arguments...)
		}
		for _, name := range e.functions.Names() {
			fn := name
			values[fn] = func(arguments ...any) (any, error) {
				return e.functions.Call(fn, arguments...)
			}
		}
	}
	for key, value := range values {
		if err := vm.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiledRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.run(ctx, r.expression, r.program)
}

func jsEvaluatorAvailable() bool {
	return true
}
