// Package permission decides whether an actor may perform an action. Checks are deny by
// default: an actor without a role, or a role without an action list, is refused.
package permission

import "slices"

// Action is a permission-checked operation.
type Action string

const (
	ActionRunAgent    Action = "run_agent"
	ActionRunWorkflow Action = "run_workflow"
	ActionApproveTool Action = "approve_tool"
	ActionViewAudit   Action = "view_audit"
	ActionViewCost    Action = "view_cost"
)

// Checker reports whether actorID may perform action on resource. Resource may be empty.
type Checker interface {
	Allowed(actorID string, action Action, resource string) bool
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(actorID string, action Action, resource string) bool

// Allowed implements Checker.
func (f CheckerFunc) Allowed(actorID string, action Action, resource string) bool {
	return f(actorID, action, resource)
}

// RoleActions maps a role name to the actions it grants.
type RoleActions map[string][]Action

// ActorRoles maps an actor id to its role name.
type ActorRoles map[string]string

// DefaultRoleActions grants users the run and approve actions, and admins everything.
func DefaultRoleActions() RoleActions {
	return RoleActions{
		"user": {ActionRunAgent, ActionRunWorkflow, ActionApproveTool},
		"admin": {
			ActionRunAgent,
			ActionRunWorkflow,
			ActionApproveTool,
			ActionViewAudit,
			ActionViewCost,
		},
	}
}

// RoleChecker is a Checker backed by actor to role and role to actions maps. The resource
// is ignored.
type RoleChecker struct {
	actors ActorRoles
	roles  RoleActions
}

// NewRoleChecker creates a RoleChecker. A nil roles map selects DefaultRoleActions.
func NewRoleChecker(actors ActorRoles, roles RoleActions) *RoleChecker {
	if roles == nil {
		roles = DefaultRoleActions()
	}
	return &RoleChecker{actors: actors, roles: roles}
}

// Allowed implements Checker.
func (c *RoleChecker) Allowed(actorID string, action Action, _ string) bool {
	role, ok := c.actors[actorID]
	if !ok || role == "" {
		return false
	}
	actions, ok := c.roles[role]
	if !ok {
		return false
	}
	return slices.Contains(actions, action)
}

// Compile-time check that RoleChecker implements Checker.
var _ Checker = (*RoleChecker)(nil)
