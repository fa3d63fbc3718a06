// Package workflow holds the approval routing rules. Everything here is pure: callers load
// state, ask for a decision, and persist the outcome.
package workflow

import (
	"errors"

	"github.com/ecas/approval-api/internal/models"
)

// Approval chain levels.
const (
	LevelTeacher   = 1
	LevelHOD       = 2
	LevelTargetHOD = 3
	LevelPrincipal = 4
	// LevelPrincipalLegacy is accepted for the principal but never produced by a transition.
	LevelPrincipalLegacy = 5
)

var (
	// ErrNotPending is returned for actions on a permission that already reached a terminal state.
	ErrNotPending = errors.New("permission is not pending")
	// ErrNotAuthorized is returned when no gate admits the actor at the current level.
	ErrNotAuthorized = errors.New("actor not authorized at current level")
)

// Scope is the relation an actor must have with a permission to act at a level.
type Scope int

const (
	ScopeAssignedTeacher Scope = iota + 1
	ScopeHomeDepartment
	ScopeTargetDepartment
	ScopeAny
)

// Matches evaluates the scope for a permission and actor.
func (s Scope) Matches(p *models.Permission, actor models.Actor) bool {
	switch s {
	case ScopeAssignedTeacher:
		return actor.ID != "" && actor.ID == p.AssignedTeacherID
	case ScopeHomeDepartment:
		return actor.AssignedDepartment != "" && actor.AssignedDepartment == p.StudentDepartment
	case ScopeTargetDepartment:
		return p.HasTargetDepartment() && actor.AssignedDepartment != "" && actor.AssignedDepartment == p.TargetDepartmentName()
	case ScopeAny:
		return true
	}
	return false
}

// Gate is one row of the transition table: who may act at a level, and where approval leads.
type Gate struct {
	Level      int
	Role       models.UserRole
	LedgerRole models.LedgerRole
	Scope      Scope
	next       func(p *models.Permission) int
}

// Next returns the level an approval at this gate moves to, 0 when the approval finalizes.
func (g Gate) Next(p *models.Permission) int {
	if g.next == nil {
		return 0
	}
	return g.next(p)
}

func to(level int) func(*models.Permission) int {
	return func(*models.Permission) int { return level }
}

// gates is the single source of truth for authorization and routing.
var gates = []Gate{
	{Level: LevelTeacher, Role: models.RoleTeacher, LedgerRole: models.LedgerRoleTeacher, Scope: ScopeAssignedTeacher, next: to(LevelHOD)},
	{Level: LevelHOD, Role: models.RoleHOD, LedgerRole: models.LedgerRoleHOD, Scope: ScopeHomeDepartment, next: func(p *models.Permission) int {
		if p.HasTargetDepartment() {
			return LevelTargetHOD
		}
		return LevelPrincipal
	}},
	{Level: LevelTargetHOD, Role: models.RoleHOD, LedgerRole: models.LedgerRoleTargetHOD, Scope: ScopeTargetDepartment, next: to(LevelPrincipal)},
	{Level: LevelPrincipal, Role: models.RolePrincipal, LedgerRole: models.LedgerRolePrincipal, Scope: ScopeAny},
	{Level: LevelPrincipalLegacy, Role: models.RolePrincipal, LedgerRole: models.LedgerRolePrincipal, Scope: ScopeAny},
}

// Lookup returns the gate for a level and role.
func Lookup(level int, role models.UserRole) (Gate, bool) {
	for _, g := range gates {
		if g.Level == level && g.Role == role {
			return g, true
		}
	}
	return Gate{}, false
}

// GatesFor lists the gates a role can pass, in level order. The pending-queue query is built
// from this list so it stays in step with Authorize.
func GatesFor(role models.UserRole) []Gate {
	result := make([]Gate, 0, 2)
	for _, g := range gates {
		if g.Role == role {
			result = append(result, g)
		}
	}
	return result
}

// LedgerRoleFor returns the role expected at a level.
func LedgerRoleFor(level int) (models.LedgerRole, bool) {
	for _, g := range gates {
		if g.Level == level {
			return g.LedgerRole, true
		}
	}
	return "", false
}

// Authorize checks the permission is pending and the actor passes the gate of its current level.
func Authorize(p *models.Permission, actor models.Actor) (Gate, error) {
	if p.Status != models.StatusPending {
		return Gate{}, ErrNotPending
	}
	gate, ok := Lookup(p.CurrentLevel, actor.Role)
	if !ok || !gate.Scope.Matches(p, actor) {
		return Gate{}, ErrNotAuthorized
	}
	return gate, nil
}
