package registry

import "time"

// RuleContext carries the inputs of one rule evaluation.
type RuleContext struct {
	// Snapshot is exposed to the rule as top level variables.
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// Path is the dotted path of the node the rule runs on.
	Path string
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

func (ctx RuleContext) snapshotMap() map[string]any {
	if m, ok := ctx.Snapshot.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// Evaluator executes rule expressions against a RuleContext.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is a reusable rule program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}
