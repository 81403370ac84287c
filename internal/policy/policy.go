// Package policy decides which order actions an operator may start for a
// charge, using govaluate expressions over the charge's state and amounts.
package policy

import (
	"fmt"

	"github.com/Knetic/govaluate"

	"github.com/yourorg/amazonpay-order-admin/internal/adapter"
)

// Action names understood by the dispatcher.
const (
	ActionCapture            = "capture"
	ActionCloseAuthorization = "close_authorization"
	ActionRefund             = "refund"
)

// RuleConfig defines one availability rule: Action is offered whenever
// Expression evaluates to true.
type RuleConfig struct {
	Action     string `mapstructure:"action" json:"action"`
	Expression string `mapstructure:"expression" json:"expression"`
}

// DefaultRules reproduce the Amazon Pay charge state machine.
func DefaultRules() []RuleConfig {
	return []RuleConfig{
		{Action: ActionCapture, Expression: "state == 'Authorized'"},
		{Action: ActionCloseAuthorization, Expression: "state == 'AuthorizationInitiated' || state == 'Authorized'"},
		{Action: ActionRefund, Expression: "state == 'Captured' && captureAmount > refundedAmount"},
	}
}

type compiledRule struct {
	action     string
	expression *govaluate.EvaluableExpression
}

// ActionPolicy evaluates availability rules in order.
type ActionPolicy struct {
	rules []compiledRule
}

// NewActionPolicy compiles rules. An empty rule set falls back to DefaultRules.
func NewActionPolicy(rules []RuleConfig) (*ActionPolicy, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Action == "" {
			return nil, fmt.Errorf("policy: rule with expression %q has no action", r.Expression)
		}
		if r.Expression == "" {
			return nil, fmt.Errorf("policy: rule for action '%s' has an empty expression", r.Action)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("policy: failed to compile rule for action '%s': %w", r.Action, err)
		}
		compiled = append(compiled, compiledRule{action: r.Action, expression: expr})
	}
	return &ActionPolicy{rules: compiled}, nil
}

// Parameters builds the expression parameters for a charge.
func Parameters(charge *adapter.Charge) map[string]interface{} {
	if charge == nil {
		return map[string]interface{}{
			"state":          "",
			"chargeAmount":   0.0,
			"captureAmount":  0.0,
			"refundedAmount": 0.0,
		}
	}
	return map[string]interface{}{
		"state":          charge.StatusDetails.State,
		"chargeAmount":   charge.ChargeAmount.Amount.InexactFloat64(),
		"captureAmount":  charge.CaptureAmount.Amount.InexactFloat64(),
		"refundedAmount": charge.RefundedAmount.Amount.InexactFloat64(),
	}
}

// Available returns the actions offered for charge, in rule order. Each action
// appears at most once.
func (p *ActionPolicy) Available(charge *adapter.Charge) ([]string, error) {
	params := Parameters(charge)
	var actions []string
	seen := make(map[string]bool)
	for _, r := range p.rules {
		if seen[r.action] {
			continue
		}
		result, err := r.expression.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("policy: error evaluating rule for action '%s': %w", r.action, err)
		}
		ok, isBool := result.(bool)
		if !isBool {
			return nil, fmt.Errorf("policy: rule for action '%s' did not evaluate to a boolean, got %T", r.action, result)
		}
		if ok {
			seen[r.action] = true
			actions = append(actions, r.action)
		}
	}
	return actions, nil
}
