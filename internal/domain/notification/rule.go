package notification

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"provision/internal/core/apperror"
)

// payloadFields declares every variable a rule may reference, with its CEL
// type. Dispatch fills missing fields with zero values so rules never fail
// on absent keys.
var payloadFields = map[string]*cel.Type{
	"event":         cel.StringType,
	"location_code": cel.StringType,
	"item_code":     cel.StringType,
	"supplier_code": cel.StringType,
	"period_name":   cel.StringType,
	"number":        cel.StringType,
	"variance":      cel.DoubleType,
	"variance_pct":  cel.DoubleType,
	"value":         cel.DoubleType,
	"qty":           cel.DoubleType,
	"on_hand":       cel.DoubleType,
	"min_qty":       cel.DoubleType,
}

// RuleEngine compiles and evaluates notification rules.
type RuleEngine struct {
	env *cel.Env
}

// NewRuleEngine builds the CEL environment shared by all rules.
func NewRuleEngine() (*RuleEngine, error) {
	opts := make([]cel.EnvOption, 0, len(payloadFields))
	for name, typ := range payloadFields {
		opts = append(opts, cel.Variable(name, typ))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("build CEL environment: %w", err)
	}
	return &RuleEngine{env: env}, nil
}

// Compile checks a rule and returns its program. An empty rule is valid and
// returns nil; the caller treats it as "always notify".
func (e *RuleEngine) Compile(rule string) (cel.Program, error) {
	if rule == "" {
		return nil, nil
	}
	ast, issues := e.env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, apperror.NewValidation("invalid notification rule").
			WithDetail("rule", rule).
			WithDetail("error", issues.Err().Error())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, apperror.NewValidation("notification rule must evaluate to a boolean").
			WithDetail("rule", rule).
			WithDetail("outputType", ast.OutputType().String())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, apperror.NewValidation("invalid notification rule").
			WithDetail("rule", rule).
			WithDetail("error", err.Error())
	}
	return prg, nil
}

// Matches evaluates a rule against a payload. An empty rule always matches.
func (e *RuleEngine) Matches(rule string, payload map[string]any) (bool, error) {
	prg, err := e.Compile(rule)
	if err != nil {
		return false, err
	}
	if prg == nil {
		return true, nil
	}

	activation := make(map[string]any, len(payloadFields))
	for name, typ := range payloadFields {
		switch typ {
		case cel.StringType:
			activation[name] = ""
		case cel.DoubleType:
			activation[name] = float64(0)
		}
	}
	for k, v := range payload {
		if _, known := payloadFields[k]; known {
			activation[k] = coerce(v)
		}
	}

	out, _, err := prg.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", rule, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q returned non-boolean %v", rule, out.Value())
	}
	return matched, nil
}

// coerce maps payload values onto the declared CEL types.
func coerce(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
