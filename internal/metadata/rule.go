package metadata

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// RuleSpec is an uncompiled validation rule as configured by the host.
// The expression describes the violation: when it evaluates to true the
// rule fails with Message.
type RuleSpec struct {
	Expression string
	Message    string
}

// Rule is a compiled property validation rule. Expressions see two
// variables: value (the property's new value) and record (all values of
// the record being saved, keyed by property name).
type Rule struct {
	Expression string
	Message    string

	program *vm.Program
}

func compileRule(rs RuleSpec) (*Rule, error) {
	prog, err := expr.Compile(rs.Expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile rule %q: %w", rs.Expression, err)
	}
	msg := rs.Message
	if msg == "" {
		msg = fmt.Sprintf("violates %s", rs.Expression)
	}
	return &Rule{Expression: rs.Expression, Message: msg, program: prog}, nil
}

// Violated evaluates the rule against a value and the record it belongs to.
func (r *Rule) Violated(value any, record map[string]any) (bool, error) {
	out, err := expr.Run(r.program, map[string]any{
		"value":  value,
		"record": record,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate rule %q: %w", r.Expression, err)
	}
	violated, _ := out.(bool)
	return violated, nil
}
