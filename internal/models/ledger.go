package models

import "time"

// LedgerRole is the authority expected to act at a level.
type LedgerRole string

const (
	LedgerRoleTeacher   LedgerRole = "teacher"
	LedgerRoleHOD       LedgerRole = "hod"
	LedgerRoleTargetHOD LedgerRole = "target_hod"
	LedgerRolePrincipal LedgerRole = "principal"
)

// Decision is a ledger entry outcome.
type Decision string

const (
	DecisionPending  Decision = "Pending"
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

// LedgerEntry records one level's decision for a permission. It is created Pending when the
// permission enters the level and decided exactly once.
type LedgerEntry struct {
	ID              string     `db:"id" json:"id"`
	PermissionID    string     `db:"permission_id" json:"permissionId"`
	Level           int        `db:"level" json:"level"`
	Role            LedgerRole `db:"role" json:"role"`
	Decision        Decision   `db:"decision" json:"decision"`
	ActorID         *string    `db:"actor_id" json:"approvedBy,omitempty"`
	ActorName       *string    `db:"actor_name" json:"approverName,omitempty"`
	ActorSignature  *string    `db:"actor_signature" json:"approverSignature,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejectionReason,omitempty"`
	DecidedAt       *time.Time `db:"decided_at" json:"timestamp,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}

// Decide closes the entry with the actor's decision.
func (e *LedgerEntry) Decide(decision Decision, actor Actor, reason string, at time.Time) {
	id, name := actor.ID, actor.Name
	ts := at
	e.Decision = decision
	e.ActorID = &id
	e.ActorName = &name
	e.ActorSignature = optional(actor.SignatureURL)
	e.DecidedAt = &ts
	if decision == DecisionRejected {
		e.RejectionReason = &reason
	}
}
