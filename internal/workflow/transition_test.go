package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecas/approval-api/internal/models"
)

var (
	teacher   = models.Actor{ID: "teacher-1", Name: "Anil Kumar", Role: models.RoleTeacher, AssignedDepartment: "CSE", AssignedClass: "S6 CSE"}
	teacher2  = models.Actor{ID: "teacher-2", Name: "Bindu", Role: models.RoleTeacher, AssignedDepartment: "CSE"}
	hodCSE    = models.Actor{ID: "hod-cse", Name: "Dr. Rajan", Role: models.RoleHOD, AssignedDepartment: "CSE", SignatureURL: "https://cdn/sig-hod.png"}
	hodECE    = models.Actor{ID: "hod-ece", Name: "Dr. Meera", Role: models.RoleHOD, AssignedDepartment: "ECE"}
	principal = models.Actor{ID: "principal-1", Name: "Dr. Thomas", Role: models.RolePrincipal}
)

func pendingPermission(target string) models.Permission {
	p := models.Permission{
		ID:                "perm-1",
		ReferenceID:       "ECAS-2024-05-0001",
		StudentID:         "student-1",
		StudentDepartment: "CSE",
		Category:          models.CategoryScholarship,
		AssignedTeacherID: teacher.ID,
		CurrentLevel:      LevelTeacher,
		Status:            models.StatusPending,
	}
	if target != "" {
		p.Category = models.CategoryIndustrialTraining
		p.TargetDepartment = &target
	}
	return p
}

func openEntry(p models.Permission, id string) models.LedgerEntry {
	role, _ := LedgerRoleFor(p.CurrentLevel)
	return models.LedgerEntry{ID: id, PermissionID: p.ID, Level: p.CurrentLevel, Role: role, Decision: models.DecisionPending}
}

// walk approves p with each actor in turn and returns the visited levels and final outcome.
func walk(t *testing.T, p models.Permission, actors ...models.Actor) ([]int, *Outcome) {
	t.Helper()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	levels := []int{p.CurrentLevel}
	entry := openEntry(p, "entry-1")
	var out *Outcome
	for i, actor := range actors {
		var err error
		out, err = Apply(p, entry, actor, ActionApprove, "", now)
		require.NoError(t, err)
		p = out.Permission
		if out.Opened != nil {
			levels = append(levels, out.Opened.Level)
			entry = *out.Opened
			entry.ID = "entry-" + string(rune('2'+i))
		}
	}
	return levels, out
}

func TestApplyFullChainWithoutTarget(t *testing.T) {
	levels, out := walk(t, pendingPermission(""), teacher, hodCSE, principal)

	require.Equal(t, []int{1, 2, 4}, levels)
	require.Equal(t, models.StatusApproved, out.Permission.Status)
	require.NotNil(t, out.Permission.CompletedAt)
	require.Nil(t, out.Opened)
	require.True(t, out.Terminal())
	require.Contains(t, out.Notice.Message, "FULLY APPROVED")
	require.Equal(t, "student-1", out.Notice.UserID)
	require.Len(t, out.Permission.ApprovalHistory, 3)
	require.Equal(t, "Dr. Rajan", out.Permission.ApproverName(models.LedgerRoleHOD))
	require.Empty(t, out.Permission.ApproverName(models.LedgerRoleTargetHOD))
}

func TestApplyFullChainWithTarget(t *testing.T) {
	levels, out := walk(t, pendingPermission("ECE"), teacher, hodCSE, hodECE, principal)

	require.Equal(t, []int{1, 2, 3, 4}, levels)
	require.Equal(t, models.StatusApproved, out.Permission.Status)
	require.Equal(t, "Dr. Meera", out.Permission.ApproverName(models.LedgerRoleTargetHOD))
}

func TestApplyOpensNextLedgerEntry(t *testing.T) {
	p := pendingPermission("ECE")
	p.CurrentLevel = LevelHOD
	out, err := Apply(p, openEntry(p, "entry-2"), hodCSE, ActionApprove, "", time.Now())
	require.NoError(t, err)

	require.Equal(t, LevelTargetHOD, out.Permission.CurrentLevel)
	require.NotNil(t, out.Opened)
	require.Equal(t, models.LedgerRoleTargetHOD, out.Opened.Role)
	require.Equal(t, models.DecisionPending, out.Opened.Decision)
	require.Equal(t, models.DecisionApproved, out.Closed.Decision)
	require.Equal(t, "https://cdn/sig-hod.png", *out.Closed.ActorSignature)
	require.Contains(t, out.Notice.Message, "forwarded to ECE Department HOD")
	require.Contains(t, out.Notice.Message, "Dr. Rajan (HOD)")
}

func TestApplyTeacherForwardsToHomeHOD(t *testing.T) {
	p := pendingPermission("")
	out, err := Apply(p, openEntry(p, "entry-1"), teacher, ActionApprove, "", time.Now())
	require.NoError(t, err)
	require.Equal(t, LevelHOD, out.ToLevel)
	require.Equal(t, models.LedgerRoleHOD, out.Opened.Role)
	require.Contains(t, out.Notice.Message, "Anil Kumar (Class Teacher) and forwarded to your Department HOD")
	require.Equal(t, models.StatusPending, out.Permission.Status)
	require.Nil(t, out.Permission.CompletedAt)
}

func TestApplyRejectsUnassignedTeacher(t *testing.T) {
	p := pendingPermission("")
	_, err := Apply(p, openEntry(p, "entry-1"), teacher2, ActionApprove, "", time.Now())
	require.ErrorIs(t, err, ErrNotAuthorized)

	_, err = Apply(p, openEntry(p, "entry-1"), teacher2, ActionReject, "no", time.Now())
	require.ErrorIs(t, err, ErrNotAuthorized)
}

func TestApplyGateMismatches(t *testing.T) {
	cases := []struct {
		name   string
		level  int
		target string
		actor  models.Actor
	}{
		{name: "hod at teacher level", level: LevelTeacher, actor: hodCSE},
		{name: "principal at teacher level", level: LevelTeacher, actor: principal},
		{name: "other department hod", level: LevelHOD, actor: hodECE},
		{name: "home hod at target level", level: LevelTargetHOD, target: "ECE", actor: hodCSE},
		{name: "teacher at principal level", level: LevelPrincipal, actor: teacher},
		{name: "hod at principal level", level: LevelPrincipal, actor: hodCSE},
		{name: "student", level: LevelTeacher, actor: models.Actor{ID: "student-1", Role: models.RoleStudent}},
		{name: "target level without target", level: LevelTargetHOD, actor: hodECE},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := pendingPermission(tc.target)
			p.CurrentLevel = tc.level
			_, err := Authorize(&p, tc.actor)
			require.ErrorIs(t, err, ErrNotAuthorized)
		})
	}
}

func TestApplyOnTerminalPermission(t *testing.T) {
	p := pendingPermission("")
	p.CurrentLevel = LevelHOD
	p.Status = models.StatusApproved

	_, err := Apply(p, openEntry(p, "entry-2"), hodCSE, ActionApprove, "", time.Now())
	require.ErrorIs(t, err, ErrNotPending)

	p.Status = models.StatusRejected
	_, err = Apply(p, openEntry(p, "entry-2"), hodCSE, ActionReject, "late", time.Now())
	require.ErrorIs(t, err, ErrNotPending)
}

func TestApplyRejectAtHODLevel(t *testing.T) {
	p := pendingPermission("ECE")
	p.CurrentLevel = LevelHOD
	out, err := Apply(p, openEntry(p, "entry-2"), hodCSE, ActionReject, "Incomplete documents", time.Now())
	require.NoError(t, err)

	require.Equal(t, models.StatusRejected, out.Permission.Status)
	require.Equal(t, "Incomplete documents", *out.Permission.RejectionReason)
	require.Equal(t, "Dr. Rajan", *out.Permission.RejectedBy)
	require.NotNil(t, out.Permission.CompletedAt)
	require.Equal(t, LevelHOD, out.Permission.CurrentLevel)
	require.Nil(t, out.Opened)
	require.Equal(t, models.DecisionRejected, out.Closed.Decision)
	require.Contains(t, out.Notice.Message, "REJECTED by Dr. Rajan (HOD). Reason: Incomplete documents")
	require.Equal(t, []string{"entry-2"}, []string(out.Permission.ApprovalHistory))
}

func TestApplyRejectDefaultsReason(t *testing.T) {
	p := pendingPermission("")
	out, err := Apply(p, openEntry(p, "entry-1"), teacher, ActionReject, "  ", time.Now())
	require.NoError(t, err)
	require.Equal(t, models.DefaultRejectionReason, *out.Permission.RejectionReason)
	require.Equal(t, models.DefaultRejectionReason, *out.Closed.RejectionReason)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	p := pendingPermission("")
	p.ApprovalHistory = []string{}
	entry := openEntry(p, "entry-1")
	_, err := Apply(p, entry, teacher, ActionApprove, "", time.Now())
	require.NoError(t, err)
	require.Equal(t, LevelTeacher, p.CurrentLevel)
	require.Nil(t, p.TeacherApprovedBy)
	require.Empty(t, p.ApprovalHistory)
	require.Equal(t, models.DecisionPending, entry.Decision)
}

func TestApplyRequiresOpenEntryAtCurrentLevel(t *testing.T) {
	p := pendingPermission("")
	entry := openEntry(p, "entry-1")
	entry.Level = LevelHOD
	_, err := Apply(p, entry, teacher, ActionApprove, "", time.Now())
	require.Error(t, err)

	entry = openEntry(p, "entry-1")
	entry.Decision = models.DecisionApproved
	_, err = Apply(p, entry, teacher, ActionApprove, "", time.Now())
	require.Error(t, err)
}

// Level 5 is never produced by a transition; the principal is still admitted there.
func TestLegacyPrincipalLevelIsAcceptedButUnreachable(t *testing.T) {
	p := pendingPermission("")
	p.CurrentLevel = LevelPrincipalLegacy
	out, err := Apply(p, openEntry(p, "entry-5"), principal, ActionApprove, "", time.Now())
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, out.Permission.Status)

	for _, g := range gates {
		require.NotEqual(t, LevelPrincipalLegacy, g.Next(&p), "gate at level %d routes to legacy level", g.Level)
	}
}

func TestGatesFor(t *testing.T) {
	hod := GatesFor(models.RoleHOD)
	require.Len(t, hod, 2)
	require.Equal(t, ScopeHomeDepartment, hod[0].Scope)
	require.Equal(t, ScopeTargetDepartment, hod[1].Scope)

	require.Len(t, GatesFor(models.RolePrincipal), 2)
	require.Empty(t, GatesFor(models.RoleStudent))
}
