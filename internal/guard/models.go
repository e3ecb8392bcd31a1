package guard

import (
	"trailhead/internal/identity/models"
	"trailhead/internal/permission"
)

// State enumerates the possible guard outcomes. Pending is the sole initial
// state; the other three are terminal for a given set of inputs.
type State string

const (
	StatePending               State = "pending"
	StateAllowed               State = "allowed"
	StateDeniedUnauthenticated State = "denied_unauthenticated"
	StateDeniedForbidden       State = "denied_forbidden"
)

// DenyReason encodes why an evaluation denied or stayed pending.
type DenyReason string

const (
	ReasonNone              DenyReason = ""
	ReasonInitializing      DenyReason = "initializing"
	ReasonNotAuthenticated  DenyReason = "not_authenticated"
	ReasonMissingRole       DenyReason = "missing_role"
	ReasonInsufficientLevel DenyReason = "insufficient_level"
	ReasonPermissionDenied  DenyReason = "permission_denied"
	ReasonMissingRouteParam DenyReason = "missing_route_param"
	ReasonStaleEvaluation   DenyReason = "stale_evaluation"
)

// Decision is the explicit three-state result the presentation layer switches
// on: render the target, render a neutral loading affordance, or deny with a
// reason. No rendering happens as a side effect of evaluation.
type Decision struct {
	State  State
	Reason DenyReason
}

// Allowed reports whether the target may render.
func (d Decision) Allowed() bool { return d.State == StateAllowed }

// Pending reports whether the evaluation has not settled yet.
func (d Decision) Pending() bool { return d.State == StatePending }

// Denied reports whether the evaluation settled on a denial.
func (d Decision) Denied() bool {
	return d.State == StateDeniedUnauthenticated || d.State == StateDeniedForbidden
}

func allowed() Decision {
	return Decision{State: StateAllowed}
}

func pending(reason DenyReason) Decision {
	return Decision{State: StatePending, Reason: reason}
}

func deniedUnauthenticated() Decision {
	return Decision{State: StateDeniedUnauthenticated, Reason: ReasonNotAuthenticated}
}

func deniedForbidden(reason DenyReason) Decision {
	return Decision{State: StateDeniedForbidden, Reason: reason}
}

// Rule is the authorization requirement attached to a navigation target.
// All fields are optional; an empty rule admits any authenticated user.
type Rule struct {
	// RequiredRoles is satisfied by any single role, via the session
	// predicates (master_guide satisfies guide; admin satisfies everything).
	RequiredRoles []models.RoleTag

	// RequiredLevel demands some team membership at least this authoritative
	// (numerically <= RequiredLevel).
	RequiredLevel *models.RoleLevel

	// RequiredPermission triggers an asynchronous backend check. Empty means none.
	RequiredPermission permission.Operation

	// ResourceParam and TeamParam name the route parameters carrying the
	// resource and team scope for the permission check.
	ResourceParam string
	TeamParam     string
}

// GateRule extends Rule for inline gating of partial UI.
type GateRule struct {
	Rule

	// MinRoleLevel is an alternative to a role list: satisfied by any team
	// membership at least this authoritative.
	MinRoleLevel *models.RoleLevel

	// ForceSync skips the asynchronous permission round-trip when the
	// synchronous role/level checks already passed. A latency/strictness
	// trade-off the caller opts into, only safe when role or level is
	// already sufficient proof of access.
	ForceSync bool
}

// Params carries resolved navigation parameters, keyed by name.
type Params map[string]string
