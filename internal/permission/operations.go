// Package permission defines the fine-grained operation vocabulary shared by
// the permission client, cache, and guard. Operation names form a closed,
// registered set so a typo fails at the call site instead of silently denying
// at runtime.
package permission

import (
	dErrors "trailhead/pkg/domain-errors"
)

// Operation names a fine-grained, server-resolved permission, optionally
// scoped to a resource and/or team.
type Operation string

const (
	OpCreateActivity      Operation = "create_activity"
	OpEditActivity        Operation = "edit_activity"
	OpDeleteActivity      Operation = "delete_activity"
	OpCreateExpedition    Operation = "create_expedition"
	OpEditExpedition      Operation = "edit_expedition"
	OpDeleteExpedition    Operation = "delete_expedition"
	OpManageTeam          Operation = "manage_team"
	OpInviteGuide         Operation = "invite_guide"
	OpRemoveGuide         Operation = "remove_guide"
	OpEditTeamPermissions Operation = "edit_team_permissions"
	OpDeleteTeam          Operation = "delete_team"
	OpViewTeamReports     Operation = "view_team_reports"
)

var registry = map[Operation]struct{}{
	OpCreateActivity:      {},
	OpEditActivity:        {},
	OpDeleteActivity:      {},
	OpCreateExpedition:    {},
	OpEditExpedition:      {},
	OpDeleteExpedition:    {},
	OpManageTeam:          {},
	OpInviteGuide:         {},
	OpRemoveGuide:         {},
	OpEditTeamPermissions: {},
	OpDeleteTeam:          {},
	OpViewTeamReports:     {},
}

// Registered reports whether the operation belongs to the known set.
func (o Operation) Registered() bool {
	_, ok := registry[o]
	return ok
}

// ParseOperation validates an operation name from external input.
//
// Errors: returns CodeInvalidInput for unregistered names.
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if !op.Registered() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unregistered permission operation: "+s)
	}
	return op, nil
}
