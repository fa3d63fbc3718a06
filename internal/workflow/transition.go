package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/ecas/approval-api/internal/models"
)

// Action is a reviewer decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Outcome is everything one action changes. It is persisted in a single transaction.
type Outcome struct {
	Action     Action
	FromLevel  int
	ToLevel    int
	Permission models.Permission
	Closed     models.LedgerEntry
	Opened     *models.LedgerEntry
	Notice     models.Notification
}

// Terminal reports whether the outcome finalizes the permission.
func (o *Outcome) Terminal() bool {
	return o.Permission.Status.Terminal()
}

// Apply computes the outcome of actor taking action on p whose current-level ledger entry is
// current. The inputs are not modified.
func Apply(p models.Permission, current models.LedgerEntry, actor models.Actor, action Action, reason string, now time.Time) (*Outcome, error) {
	gate, err := Authorize(&p, actor)
	if err != nil {
		return nil, err
	}
	if current.Level != p.CurrentLevel || current.Decision != models.DecisionPending {
		return nil, fmt.Errorf("ledger entry for level %d is not open", p.CurrentLevel)
	}
	now = now.UTC()

	out := &Outcome{Action: action, FromLevel: p.CurrentLevel}
	closed := current
	history := append(make([]string, 0, len(p.ApprovalHistory)+1), p.ApprovalHistory...)

	switch action {
	case ActionApprove:
		closed.Decide(models.DecisionApproved, actor, "", now)
		p.RecordApproval(gate.LedgerRole, actor, now)

		next := gate.Next(&p)
		if next == 0 {
			p.Status = models.StatusApproved
			p.CompletedAt = &now
			out.ToLevel = p.CurrentLevel
			out.Notice = notice(&p, approvedMessage(&p))
			break
		}
		role, _ := LedgerRoleFor(next)
		p.CurrentLevel = next
		out.ToLevel = next
		out.Opened = &models.LedgerEntry{
			PermissionID: p.ID,
			Level:        next,
			Role:         role,
			Decision:     models.DecisionPending,
			CreatedAt:    now,
		}
		out.Notice = notice(&p, forwardedMessage(&p, actor, next))
	case ActionReject:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = models.DefaultRejectionReason
		}
		closed.Decide(models.DecisionRejected, actor, reason, now)
		name := actor.Name
		p.Status = models.StatusRejected
		p.RejectionReason = &reason
		p.RejectedBy = &name
		p.RejectedAt = &now
		p.CompletedAt = &now
		out.ToLevel = p.CurrentLevel
		out.Notice = notice(&p, rejectedMessage(&p, actor, reason))
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}

	if closed.ID != "" {
		history = append(history, closed.ID)
	}
	p.ApprovalHistory = history
	out.Permission = p
	out.Closed = closed
	out.Notice.CreatedAt = now
	return out, nil
}

func notice(p *models.Permission, message string) models.Notification {
	id := p.ID
	category := p.Category
	return models.Notification{
		UserID:       p.StudentID,
		Message:      message,
		PermissionID: &id,
		Category:     &category,
	}
}
