package guard

import "context"

// Gate evaluates inline visibility rules for partial UI, for example a single
// button inside an already-rendered page. It reuses the evaluator's rule chain
// but never produces the initializing state: content around the gated element
// is already on screen, so an unsettled check simply keeps the element hidden.
type Gate struct {
	evaluator *Evaluator
}

// NewGate wraps an evaluator for inline gating.
// Panics if the evaluator is nil - fail fast at startup.
func NewGate(evaluator *Evaluator) *Gate {
	if evaluator == nil {
		panic("guard.NewGate: evaluator is required")
	}
	return &Gate{evaluator: evaluator}
}

// Evaluate resolves an inline gating rule. Unlike route evaluation it treats
// an unauthenticated visitor as a plain forbidden outcome; hiding an element
// is not a navigation event and must not trigger a login redirect.
func (g *Gate) Evaluate(ctx context.Context, rule GateRule, params Params) Decision {
	e := g.evaluator

	if !e.session.Initialized() || e.session.Loading() {
		return pending(ReasonInitializing)
	}
	if !e.session.IsAuthenticated() {
		return deniedForbidden(ReasonNotAuthenticated)
	}

	// Synchronous checks first. Track whether any of them actually applied
	// and passed; ForceSync may only stand in for the round-trip when the
	// caller proved access through at least one of them.
	syncProven := false

	if len(rule.RequiredRoles) > 0 {
		if !e.anyRoleSatisfied(rule.RequiredRoles) {
			return deniedForbidden(ReasonMissingRole)
		}
		syncProven = true
	}
	if rule.MinRoleLevel != nil {
		if !e.session.HasRoleLevel(*rule.MinRoleLevel) {
			return deniedForbidden(ReasonInsufficientLevel)
		}
		syncProven = true
	}
	if rule.RequiredLevel != nil {
		if !e.session.HasRoleLevel(*rule.RequiredLevel) {
			return deniedForbidden(ReasonInsufficientLevel)
		}
		syncProven = true
	}

	if rule.RequiredPermission != "" {
		if rule.ForceSync && syncProven {
			return allowed()
		}
		return e.checkPermission(ctx, rule.Rule, params)
	}

	return allowed()
}
