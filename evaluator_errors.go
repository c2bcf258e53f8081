package registry

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError carries the engine, expression and node path of a failed
// rule evaluation.
type EvaluationError struct {
	Engine string
	Expr   string
	Path   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("registry: %s evaluator %s path=%s: %v", e.Engine, describeExpression(e.Expr), pathLabel(e.Path), e.Err)
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
	if strings.HasPrefix(err.Error(), "registry:") {
		return err
	}
	return fmt.Errorf("registry: %s evaluator: %w", engine, err)
}

// wrapEvaluationError fills in missing metadata on an existing
// *EvaluationError or wraps err in a new one.
func wrapEvaluationError(engine, expr, path string, err error) error {
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
		if evalErr.Path == "" {
			evalErr.Path = path
		}
		return evalErr
	}
	return &EvaluationError{Engine: engine, Expr: expr, Path: path, Err: err}
}
