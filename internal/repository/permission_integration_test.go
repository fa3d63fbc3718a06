//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecas/approval-api/internal/models"
	"github.com/ecas/approval-api/internal/testutil/testdb"
	"github.com/ecas/approval-api/internal/workflow"
)

func seedUser(t *testing.T, repo *UserRepository, role models.UserRole, email string, dept *string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		PasswordHash: "hash",
		FullName:     email,
		Role:         role,
	}
	if role == models.RoleStudent {
		user.Department = dept
		class := "S6"
		user.ClassName = &class
	} else {
		user.AssignedDepartment = dept
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestPermissionRepositoryIntegration_FullChain(t *testing.T) {
	ctx := context.Background()
	handle, err := testdb.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(handle.Close)

	users := NewUserRepository(handle.DB)
	permissions := NewPermissionRepository(handle.DB)
	notifications := NewNotificationRepository(handle.DB)

	cse := "CSE"
	mech := "MECH"
	student := seedUser(t, users, models.RoleStudent, "student@ecas.test", &cse)
	teacher := seedUser(t, users, models.RoleTeacher, "teacher@ecas.test", &cse)
	hod := seedUser(t, users, models.RoleHOD, "hod@ecas.test", &cse)
	targetHOD := seedUser(t, users, models.RoleHOD, "mech-hod@ecas.test", &mech)
	principal := seedUser(t, users, models.RolePrincipal, "principal@ecas.test", nil)

	created := time.Date(2025, time.March, 4, 9, 0, 0, 0, time.UTC)
	newPermission := func() *models.Permission {
		return &models.Permission{
			StudentID:            student.ID,
			StudentName:          student.FullName,
			StudentEmail:         student.Email,
			StudentDepartment:    cse,
			StudentClass:         "S6",
			Category:             models.CategoryIndustrialTraining,
			TemplateContent:      "letter body",
			Reason:               "internship",
			FromDate:             created,
			ToDate:               created.AddDate(0, 0, 14),
			TargetDepartment:     &mech,
			AssignedTeacherID:    teacher.ID,
			AssignedTeacherName:  teacher.FullName,
			AssignedTeacherEmail: teacher.Email,
			CreatedAt:            created,
		}
	}

	first := newPermission()
	require.NoError(t, permissions.Create(ctx, first))
	second := newPermission()
	require.NoError(t, permissions.Create(ctx, second))
	assert.Equal(t, "ECAS-2025-03-0001", first.ReferenceID)
	assert.Equal(t, "ECAS-2025-03-0002", second.ReferenceID)

	pending, err := permissions.ListPending(ctx, teacher.Actor())
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	step := func(actor *models.User, action workflow.Action) *workflow.Outcome {
		t.Helper()
		p, err := permissions.GetByID(ctx, first.ID)
		require.NoError(t, err)
		entry, err := permissions.GetLedgerEntry(ctx, p.ID, p.CurrentLevel)
		require.NoError(t, err)
		out, err := workflow.Apply(*p, *entry, actor.Actor(), action, "", time.Now())
		require.NoError(t, err)
		require.NoError(t, permissions.ApplyTransition(ctx, out))
		return out
	}

	out := step(teacher, workflow.ActionApprove)
	assert.Equal(t, workflow.LevelHOD, out.ToLevel)

	// Replaying the same outcome must lose the race.
	assert.ErrorIs(t, permissions.ApplyTransition(ctx, out), ErrStaleTransition)

	step(hod, workflow.ActionApprove)
	out = step(targetHOD, workflow.ActionApprove)
	assert.Equal(t, workflow.LevelPrincipal, out.ToLevel)
	out = step(principal, workflow.ActionApprove)
	assert.True(t, out.Terminal())

	final, err := permissions.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, final.Status)
	assert.NotNil(t, final.CompletedAt)
	assert.Len(t, final.ApprovalHistory, 4)

	ledger, err := permissions.ListLedger(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 4)
	for i, entry := range ledger {
		assert.Equal(t, i+1, entry.Level)
		assert.Equal(t, models.DecisionApproved, entry.Decision)
	}

	history, err := permissions.ListHistory(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	inbox, err := notifications.ListByUser(ctx, student.ID, InboxLimit)
	require.NoError(t, err)
	assert.Len(t, inbox, 4)
	unread, err := notifications.CountUnread(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, unread)
}
