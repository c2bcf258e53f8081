package registry

import (
	"context"
	"fmt"
	"time"
)

// Evaluate preloads the node and runs expr against its snapshot. Top level
// keys of the node become rule variables.
func (n *Node) Evaluate(ctx context.Context, expr string) (any, error) {
	return n.EvaluateWith(ctx, RuleContext{}, expr)
}

// EvaluateWith runs expr with rc. When rc.Snapshot is nil the node is
// preloaded and its export is used; rc.Path defaults to the node path.
func (n *Node) EvaluateWith(ctx context.Context, rc RuleContext, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("registry: expression must not be empty")
	}
	evaluator, err := n.registry.ruleEvaluator()
	if err != nil {
		return nil, err
	}
	if rc.Snapshot == nil {
		if err := n.Preload(ctx); err != nil {
			return nil, err
		}
		rc.Snapshot = n.Export()
	}
	if rc.Path == "" {
		rc.Path = n.path
	}
	rc = rc.withDefaults()

	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(rc, expr)
	evalErr = wrapEvaluationError(engine, expr, rc.Path, evalErr)

	event := n.registry.logger.Debug()
	if evalErr != nil {
		event = n.registry.logger.Warn().Err(evalErr)
	}
	event.Str("engine", engine).
		Str("expr", expr).
		Str("path", pathLabel(rc.Path)).
		Dur("duration", time.Since(start)).
		Msg("rule evaluated")

	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

// Evaluate runs expr on the node at path.
func (r *Registry) Evaluate(ctx context.Context, path, expr string) (any, error) {
	node, err := r.NodeContext(ctx, path)
	if err != nil {
		return nil, err
	}
	return node.Evaluate(ctx, expr)
}

func (r *Registry) ruleEvaluator() (Evaluator, error) {
	r.evalOnce.Do(func() {
		if r.cfg.evaluator != nil {
			r.evaluator = r.cfg.evaluator
			return
		}
		var opts []ExprEvaluatorOption
		if r.cfg.programCache != nil {
			opts = append(opts, ExprWithProgramCache(r.cfg.programCache))
		}
		if r.cfg.functions != nil {
			opts = append(opts, ExprWithFunctionRegistry(r.cfg.functions))
		}
		r.evaluator = NewExprEvaluator(opts...)
	})
	if r.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	return r.evaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	if named, ok := e.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	return "custom"
}
