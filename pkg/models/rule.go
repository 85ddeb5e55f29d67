package models

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// AutoApprovalKind discriminates the supported auto-approval rule variants.
type AutoApprovalKind string

const (
	// AutoApprovalAmountBelow approves when a numeric payload field is
	// strictly below a threshold.
	AutoApprovalAmountBelow AutoApprovalKind = "amount_below"

	// AutoApprovalExpression approves when a boolean expression over the
	// payload evaluates true.
	AutoApprovalExpression AutoApprovalKind = "expression"
)

// AutoApprovalRule is the template-defined predicate that lets a request
// bypass the human approval chain. Rules are compiled once when the template
// is loaded, not re-parsed per evaluation.
type AutoApprovalRule struct {
	Kind AutoApprovalKind `json:"kind" validate:"required,oneof=amount_below expression"`

	// Field and MaxAmount configure the amount_below variant. Field
	// defaults to "amount".
	Field     string  `json:"field,omitempty"`
	MaxAmount float64 `json:"max_amount,omitempty"`

	// Expression configures the expression variant, e.g.
	// `amount < 100 && category == "catering"`.
	Expression string `json:"expression,omitempty"`

	program *vm.Program
}

var ErrUnknownRuleKind = errors.New("unknown auto-approval rule kind")

// Compile validates the rule and, for expression rules, compiles the
// predicate program. Safe to call more than once.
func (r *AutoApprovalRule) Compile() error {
	switch r.Kind {
	case AutoApprovalAmountBelow:
		if r.MaxAmount <= 0 {
			return errors.New("amount_below rule requires a positive max_amount")
		}

		return nil
	case AutoApprovalExpression:
		if r.Expression == "" {
			return errors.New("expression rule requires an expression")
		}

		program, err := expr.Compile(r.Expression, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return fmt.Errorf("compile %q: %w", r.Expression, err)
		}

		r.program = program

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRuleKind, r.Kind)
	}
}

// Satisfied evaluates the rule against a submission payload.
func (r *AutoApprovalRule) Satisfied(payload map[string]any) (bool, error) {
	switch r.Kind {
	case AutoApprovalAmountBelow:
		field := r.Field
		if field == "" {
			field = "amount"
		}

		amount, ok := numericField(payload, field)
		if !ok {
			return false, nil
		}

		return amount < r.MaxAmount, nil
	case AutoApprovalExpression:
		if r.program == nil {
			if err := r.Compile(); err != nil {
				return false, err
			}
		}

		env := payload
		if env == nil {
			env = map[string]any{}
		}

		out, err := expr.Run(r.program, env)
		if err != nil {
			return false, fmt.Errorf("evaluate %q: %w", r.Expression, err)
		}

		satisfied, ok := out.(bool)
		if !ok {
			return false, fmt.Errorf("expression %q did not return a boolean", r.Expression)
		}

		return satisfied, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownRuleKind, r.Kind)
	}
}

// numericField extracts a numeric payload field, tolerating the types JSON
// decoding produces.
func numericField(payload map[string]any, field string) (float64, bool) {
	raw, exists := payload[field]
	if !exists {
		return 0, false
	}

	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
