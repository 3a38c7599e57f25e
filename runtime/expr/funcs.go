package expr

import (
	"encoding/base64"
	"fmt"

	"github.com/expr-lang/expr"
)

// sharedOptions are available to both Text's embedded `{{ }}` expressions
// and Lambda bodies: the same base64 helpers the teacher's YAML evaluator
// exposes, plus a defined() that distinguishes a missing upstream from one
// that resolved to nil (§9 supplemented feature, asyncflows' context.get
// sentinel behavior).
func sharedOptions(env map[string]any) []expr.Option {
	return []expr.Option{
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.Function("base64_encode", func(params ...any) (any, error) {
			s, _ := params[0].(string)
			return base64.StdEncoding.EncodeToString([]byte(s)), nil
		}),
		expr.Function("base64_decode", func(params ...any) (any, error) {
			s, _ := params[0].(string)
			decoded, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return "", err
			}
			return string(decoded), nil
		}),
		expr.Function("defined", func(params ...any) (any, error) {
			path, ok := params[0].(string)
			if !ok {
				return false, fmt.Errorf("defined() expects a string path, got %T", params[0])
			}
			_, err := resolvePath(env, path)
			return err == nil, nil
		}),
	}
}

// evalExpr compiles and runs a single expr-lang expression against env,
// wrapping compile/runtime failures as ErrInvalidExpression.
func evalExpr(source string, env map[string]any) (any, error) {
	program, err := expr.Compile(source, sharedOptions(env)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidExpression, source, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidExpression, source, err)
	}
	return out, nil
}
