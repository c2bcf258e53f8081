package registry

import (
	"fmt"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celMaxArity bounds the argument count of custom functions in CEL, which has
// no variadic overloads.
const celMaxArity = 3

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache reuses checked programs. Entries are keyed by the
// expression and the set of top level snapshot keys.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes custom functions taking up to three
// arguments, by name and through call(name, args...).
func CELWithFunctionRegistry(fr *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if fr == nil {
			return
		}
		e.functions = fr.Clone()
	}
}

type celEvaluator struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

type celProgram struct {
	program celgo.Program
}

// NewCELEvaluator constructs an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Engine() string { return "cel" }

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	snapshot := ctx.snapshotMap()
	program, err := e.loadOrCompile(expression, snapshot)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.Path, err)
	}
	out, _, err := program.program.Eval(e.activation(ctx, snapshot))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.Path, err)
	}
	return out.Value(), nil
}

// Compile defers checking to the first evaluation since CEL declarations
// depend on the snapshot keys.
func (e *celEvaluator) Compile(expression string) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	return &celCompiledRule{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, snapshot map[string]any) (*celProgram, error) {
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	cacheKey := "cel:" + expression + "|" + strings.Join(keys, ",")

	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(keys)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{program: prg}
	if e.cache != nil {
		e.cache.Set(cacheKey, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(keys []string) (*celgo.Env, error) {
	reserved := map[string]*celgo.Type{
		"now":      celgo.TimestampType,
		"args":     celgo.DynType,
		"metadata": celgo.DynType,
		"path":     celgo.StringType,
	}
	opts := make([]celgo.EnvOption, 0, len(reserved)+len(keys)+1)
	for name, typ := range reserved {
		opts = append(opts, celgo.Variable(name, typ))
	}
	for _, key := range keys {
		if _, ok := reserved[key]; ok {
			continue
		}
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	if e.functions != nil {
		opts = append(opts, celgo.Function("call", e.overloads("call", celgo.StringType, e.callBinding)...))
		for _, name := range e.functions.Names() {
			opts = append(opts, celgo.Function(name, e.overloads(name, nil, e.namedBinding(name))...))
		}
	}
	return celgo.NewEnv(opts...)
}

// overloads declares arities 0..celMaxArity of dyn arguments, preceded by
// lead when it is non-nil.
func (e *celEvaluator) overloads(name string, lead *celgo.Type, binding func(...ref.Val) ref.Val) []celgo.FunctionOpt {
	out := make([]celgo.FunctionOpt, 0, celMaxArity+1)
	for arity := 0; arity <= celMaxArity; arity++ {
		args := make([]*celgo.Type, 0, arity+1)
		if lead != nil {
			args = append(args, lead)
		}
		for i := 0; i < arity; i++ {
			args = append(args, celgo.DynType)
		}
		if len(args) == 0 {
			continue
		}
		id := fmt.Sprintf("%s_dyn_%d", strings.ToLower(name), len(args))
		out = append(out, celgo.Overload(id, args, celgo.DynType, celgo.FunctionBinding(binding)))
	}
	return out
}

func (e *celEvaluator) activation(ctx RuleContext, snapshot map[string]any) map[string]any {
	activation := make(map[string]any, len(snapshot)+4)
	for key, value := range snapshot {
		activation[key] = value
	}
	activation["now"] = ctx.timestamp()
	activation["args"] = ctx.Args
	activation["metadata"] = ctx.Metadata
	activation["path"] = ctx.Path
	return activation
}

func (e *celEvaluator) callBinding(values ...ref.Val) ref.Val {
	if len(values) == 0 {
		return types.NewErr("registry: call requires function name")
	}
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("registry: call name must be string")
	}
	return e.invoke(name, values[1:])
}

func (e *celEvaluator) namedBinding(name string) func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		return e.invoke(name, values)
	}
}

func (e *celEvaluator) invoke(name string, values []ref.Val) ref.Val {
	args := make([]any, 0, len(values))
	for _, val := range values {
		args = append(args, val.Value())
	}
	result, err := e.functions.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celCompiledRule struct {
	evaluator  *celEvaluator
	expression string
}

func (r *celCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.Evaluate(ctx, r.expression)
}
