package workflow

import (
	"fmt"

	"github.com/ecas/approval-api/internal/models"
)

func approvedMessage(p *models.Permission) string {
	return fmt.Sprintf("Your %s request (%s) has been FULLY APPROVED by the Principal! You can now download your permission letter.",
		p.Category, p.ReferenceID)
}

func forwardedMessage(p *models.Permission, approver models.Actor, next int) string {
	return fmt.Sprintf("Your %s request (%s) has been approved by %s (%s) and forwarded to %s for review.",
		p.Category, p.ReferenceID, approver.Name, approver.Role.Label(), NextAuthority(p, next))
}

func rejectedMessage(p *models.Permission, rejecter models.Actor, reason string) string {
	return fmt.Sprintf("Your %s request (%s) has been REJECTED by %s (%s). Reason: %s",
		p.Category, p.ReferenceID, rejecter.Name, rejecter.Role.Label(), reason)
}

// NextAuthority names the reviewer a permission waits for at level.
func NextAuthority(p *models.Permission, level int) string {
	switch level {
	case LevelHOD:
		return "your Department HOD"
	case LevelTargetHOD:
		return fmt.Sprintf("%s Department HOD", p.TargetDepartmentName())
	case LevelPrincipal, LevelPrincipalLegacy:
		return "the Principal"
	}
	return "the next reviewer"
}
