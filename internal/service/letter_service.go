package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/ecas/approval-api/internal/models"
	appErrors "github.com/ecas/approval-api/pkg/errors"
	"github.com/ecas/approval-api/pkg/letter"
)

type permissionReader interface {
	GetByID(ctx context.Context, id string) (*models.Permission, error)
}

type letterRenderer interface {
	Render(l *letter.Letter) ([]byte, error)
}

// LetterDocument is a rendered letter ready for download.
type LetterDocument struct {
	Filename    string
	ContentType string
	Content     []byte
}

// LetterService guards and renders permission letters.
type LetterService struct {
	permissions permissionReader
	users       userLookup
	renderer    letterRenderer
	logger      *zap.Logger
}

// NewLetterService constructs the service.
func NewLetterService(permissions permissionReader, users userLookup, renderer letterRenderer, logger *zap.Logger) *LetterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LetterService{permissions: permissions, users: users, renderer: renderer, logger: logger}
}

// Generate renders the letter of an approved permission for its requester.
func (s *LetterService) Generate(ctx context.Context, permissionID, userID string) (*LetterDocument, error) {
	p, err := s.permissions.GetByID(ctx, permissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission")
	}
	if p.StudentID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the requester can download this letter")
	}
	if p.Status != models.StatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "letter is available once the request is fully approved")
	}

	doc := letterFor(p)
	if student, err := s.users.FindByID(ctx, p.StudentID); err == nil {
		doc.StudentNumber = derefString(student.StudentNumber)
	} else {
		s.logger.Warn("letter rendered without student number", zap.String("permission_id", p.ID), zap.Error(err))
	}

	content, err := s.renderer.Render(doc)
	if err != nil {
		if errors.Is(err, letter.ErrUnsupportedCategory) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "no letter format for this category")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render letter")
	}

	return &LetterDocument{
		Filename:    letter.Filename(p.ReferenceID),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

func letterFor(p *models.Permission) *letter.Letter {
	doc := &letter.Letter{
		ReferenceID:       p.ReferenceID,
		Category:          string(p.Category),
		Subcategory:       derefString(p.Subcategory),
		StudentName:       p.StudentName,
		StudentClass:      p.StudentClass,
		StudentDepartment: p.StudentDepartment,
		TargetDepartment:  p.TargetDepartmentName(),
		Reason:            p.Reason,
		FromDate:          p.FromDate,
		ToDate:            p.ToDate,
		SubmittedAt:       p.CreatedAt,
		TeacherName:       p.ApproverName(models.LedgerRoleTeacher),
		HODName:           p.ApproverName(models.LedgerRoleHOD),
		TargetHODName:     p.ApproverName(models.LedgerRoleTargetHOD),
		PrincipalName:     p.ApproverName(models.LedgerRolePrincipal),
	}
	if p.CompletedAt != nil {
		doc.ApprovedAt = *p.CompletedAt
	}
	return doc
}
