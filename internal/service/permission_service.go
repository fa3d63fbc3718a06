package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ecas/approval-api/internal/dto"
	"github.com/ecas/approval-api/internal/models"
	"github.com/ecas/approval-api/internal/repository"
	"github.com/ecas/approval-api/internal/workflow"
	appErrors "github.com/ecas/approval-api/pkg/errors"
	"github.com/ecas/approval-api/pkg/storage"
)

type permissionStore interface {
	Create(ctx context.Context, p *models.Permission) error
	GetByID(ctx context.Context, id string) (*models.Permission, error)
	List(ctx context.Context, filter models.PermissionFilter) ([]models.Permission, error)
	ListPending(ctx context.Context, actor models.Actor) ([]models.Permission, error)
	ListLedger(ctx context.Context, permissionID string) ([]models.LedgerEntry, error)
	ListLedgers(ctx context.Context, permissionIDs []string) (map[string][]models.LedgerEntry, error)
	GetLedgerEntry(ctx context.Context, permissionID string, level int) (*models.LedgerEntry, error)
	ApplyTransition(ctx context.Context, out *workflow.Outcome) error
	ListHistory(ctx context.Context, studentID string) ([]models.HistorySummary, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// TransitionPublisher receives committed transitions.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, out *workflow.Outcome, actor models.Actor)
}

type unreadInvalidator interface {
	InvalidateUnread(ctx context.Context, userID string)
}

// PermissionServiceOption configures the service.
type PermissionServiceOption func(*PermissionService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) PermissionServiceOption {
	return func(s *PermissionService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTransitionPublisher registers the post-commit event publisher.
func WithTransitionPublisher(p TransitionPublisher) PermissionServiceOption {
	return func(s *PermissionService) {
		s.publisher = p
	}
}

// WithUnreadInvalidator registers the unread counter cache to clear after a transition.
func WithUnreadInvalidator(inv unreadInvalidator) PermissionServiceOption {
	return func(s *PermissionService) {
		s.unread = inv
	}
}

// WithPermissionMetrics records submissions and transitions.
func WithPermissionMetrics(m *MetricsService) PermissionServiceOption {
	return func(s *PermissionService) {
		s.metrics = m
	}
}

// PermissionService implements submission, the approval chain and the request views.
type PermissionService struct {
	repo      permissionStore
	users     userLookup
	uploader  artifactUploader
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
	publisher TransitionPublisher
	unread    unreadInvalidator
	metrics   *MetricsService
}

// NewPermissionService constructs the service.
func NewPermissionService(repo permissionStore, users userLookup, uploader artifactUploader, validate *validator.Validate, logger *zap.Logger, opts ...PermissionServiceOption) *PermissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PermissionService{
		repo:      repo,
		users:     users,
		uploader:  uploader,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit validates and stores a new request at level 1.
func (s *PermissionService) Submit(ctx context.Context, studentID string, req dto.SubmitPermissionRequest, document *dto.Upload) (*models.Permission, error) {
	trimSubmission(&req)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid permission payload")
	}

	student, err := s.loadUser(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit requests")
	}

	from, to, err := parseRange(req.FromDate, req.ToDate)
	if err != nil {
		return nil, err
	}
	home := derefString(student.Department)
	if err := validateRouting(req, home); err != nil {
		return nil, err
	}

	teacher, err := s.users.FindByID(ctx, req.AssignedTeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assigned teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assigned teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assigned reviewer is not a teacher")
	}

	p := &models.Permission{
		StudentID:            student.ID,
		StudentName:          student.FullName,
		StudentEmail:         student.Email,
		StudentDepartment:    home,
		StudentClass:         derefString(student.ClassName),
		StudentSignature:     student.SignatureURL,
		Category:             req.Category,
		TemplateContent:      req.TemplateContent,
		Reason:               req.Reason,
		FromDate:             from,
		ToDate:               to,
		AssignedTeacherID:    req.AssignedTeacherID,
		AssignedTeacherName:  req.AssignedTeacherName,
		AssignedTeacherEmail: req.AssignedTeacherEmail,
		CreatedAt:            s.now(),
	}
	if req.Subcategory != "" {
		sub := req.Subcategory
		p.Subcategory = &sub
	}
	if req.TargetDepartment != "" {
		target := req.TargetDepartment
		p.TargetDepartment = &target
	}

	if document != nil && len(document.Data) > 0 {
		url, err := s.uploader.UploadBytes(ctx, storage.FolderDocuments, document.Filename, document.Data)
		if err != nil {
			return nil, appErrors.Transient(err, "failed to store document, please retry")
		}
		p.DocumentURL = &url
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, appErrors.Transient(err, "failed to save permission request, please retry")
	}
	s.metrics.RecordSubmission(string(p.Category))
	s.logger.Info("permission submitted",
		zap.String("permission_id", p.ID),
		zap.String("reference_id", p.ReferenceID),
		zap.String("category", string(p.Category)),
		zap.String("student_id", p.StudentID),
	)
	return p, nil
}

func trimSubmission(req *dto.SubmitPermissionRequest) {
	req.Subcategory = strings.TrimSpace(req.Subcategory)
	req.TemplateContent = strings.TrimSpace(req.TemplateContent)
	req.Reason = strings.TrimSpace(req.Reason)
	req.FromDate = strings.TrimSpace(req.FromDate)
	req.ToDate = strings.TrimSpace(req.ToDate)
	req.TargetDepartment = strings.TrimSpace(req.TargetDepartment)
	req.AssignedTeacherID = strings.TrimSpace(req.AssignedTeacherID)
	req.AssignedTeacherName = strings.TrimSpace(req.AssignedTeacherName)
	req.AssignedTeacherEmail = strings.TrimSpace(req.AssignedTeacherEmail)
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from, err := time.Parse(dto.DateLayout, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "fromDate must be YYYY-MM-DD")
	}
	to, err := time.Parse(dto.DateLayout, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "toDate must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "toDate must not be before fromDate")
	}
	return from, to, nil
}

func validateRouting(req dto.SubmitPermissionRequest, home string) error {
	if !req.Category.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown category")
	}

	subs := req.Category.Subcategories()
	switch {
	case req.Subcategory == "":
	case len(subs) == 0:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("category %s has no subcategories", req.Category))
	case !contains(subs, req.Subcategory):
		return appErrors.Clone(appErrors.ErrValidation, "unknown subcategory")
	}

	if req.TargetDepartment == "" {
		return nil
	}
	if !req.Category.AllowsTargetDepartment() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("category %s cannot target another department", req.Category))
	}
	if strings.EqualFold(req.TargetDepartment, home) {
		return appErrors.Clone(appErrors.ErrValidation, "targetDepartment must differ from your department")
	}
	return nil
}

// Approve moves the permission one level forward, or finalizes it at the principal.
func (s *PermissionService) Approve(ctx context.Context, permissionID, actorID string) (*dto.TransitionResponse, error) {
	return s.transition(ctx, permissionID, actorID, workflow.ActionApprove, "")
}

// Reject closes the permission at its current level.
func (s *PermissionService) Reject(ctx context.Context, permissionID, actorID, reason string) (*dto.TransitionResponse, error) {
	return s.transition(ctx, permissionID, actorID, workflow.ActionReject, strings.TrimSpace(reason))
}

func (s *PermissionService) transition(ctx context.Context, permissionID, actorID string, action workflow.Action, reason string) (*dto.TransitionResponse, error) {
	user, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	actor := user.Actor()

	p, err := s.repo.GetByID(ctx, permissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission not found")
		}
		return nil, appErrors.Transient(err, "")
	}

	if _, err := workflow.Authorize(p, actor); err != nil {
		s.metrics.RecordTransition(string(action), "refused")
		return nil, translateWorkflowErr(err)
	}

	current, err := s.repo.GetLedgerEntry(ctx, p.ID, p.CurrentLevel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "ledger entry not found for current level")
		}
		return nil, appErrors.Transient(err, "")
	}

	out, err := workflow.Apply(*p, *current, actor, action, reason, s.now())
	if err != nil {
		s.metrics.RecordTransition(string(action), "refused")
		return nil, translateWorkflowErr(err)
	}

	if err := s.repo.ApplyTransition(ctx, out); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			s.metrics.RecordTransition(string(action), "stale")
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "permission was processed by someone else, reload and retry")
		}
		s.metrics.RecordTransition(string(action), "failed")
		return nil, appErrors.Transient(err, "")
	}

	outcome := "forwarded"
	if out.Terminal() {
		outcome = strings.ToLower(string(out.Permission.Status))
	}
	s.metrics.RecordTransition(string(action), outcome)
	s.logger.Info("permission transitioned",
		zap.String("permission_id", out.Permission.ID),
		zap.String("reference_id", out.Permission.ReferenceID),
		zap.String("action", string(action)),
		zap.Int("from_level", out.FromLevel),
		zap.Int("to_level", out.ToLevel),
		zap.String("status", string(out.Permission.Status)),
		zap.String("actor_id", actor.ID),
	)

	if s.unread != nil {
		s.unread.InvalidateUnread(ctx, out.Notice.UserID)
	}
	if s.publisher != nil {
		s.publisher.PublishTransition(ctx, out, actor)
	}

	return &dto.TransitionResponse{Message: transitionMessage(out), Permission: &out.Permission}, nil
}

func transitionMessage(out *workflow.Outcome) string {
	switch {
	case out.Action == workflow.ActionReject:
		return "Request rejected"
	case out.Terminal():
		return "Request fully approved"
	default:
		return fmt.Sprintf("Request approved and forwarded to %s", workflow.NextAuthority(&out.Permission, out.ToLevel))
	}
}

func translateWorkflowErr(err error) error {
	switch {
	case errors.Is(err, workflow.ErrNotPending):
		return appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, appErrors.ErrInvalidState.Message)
	case errors.Is(err, workflow.ErrNotAuthorized):
		return appErrors.Wrap(err, appErrors.ErrNotAuthorizedForLevel.Code, appErrors.ErrNotAuthorizedForLevel.Status, appErrors.ErrNotAuthorizedForLevel.Message)
	default:
		return appErrors.Wrap(err, appErrors.ErrInvalidState.Code, appErrors.ErrInvalidState.Status, "permission state changed, reload and retry")
	}
}

// MyPermissions lists the student's requests newest first with their ledgers.
func (s *PermissionService) MyPermissions(ctx context.Context, studentID string) ([]models.Permission, error) {
	items, err := s.repo.List(ctx, models.PermissionFilter{StudentID: studentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permissions")
	}
	return s.withLedgers(ctx, items)
}

// Status returns the student's most recent request.
func (s *PermissionService) Status(ctx context.Context, studentID string) (*models.Permission, error) {
	items, err := s.repo.List(ctx, models.PermissionFilter{StudentID: studentID, Limit: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest permission")
	}
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no permission requests found")
	}
	items, err = s.withLedgers(ctx, items)
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// History returns the student's history summaries.
func (s *PermissionService) History(ctx context.Context, studentID string) ([]models.HistorySummary, error) {
	history, err := s.repo.ListHistory(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}
	return history, nil
}

// Pending lists requests awaiting the actor at their current level.
func (s *PermissionService) Pending(ctx context.Context, actorID string) ([]models.Permission, error) {
	user, err := s.loadUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !user.Role.IsAuthority() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only reviewers have a pending queue")
	}
	items, err := s.repo.ListPending(ctx, user.Actor())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending permissions")
	}
	return s.withLedgers(ctx, items)
}

// All lists every request for reviewers.
func (s *PermissionService) All(ctx context.Context, role models.UserRole) ([]models.Permission, error) {
	if !role.IsAuthority() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only reviewers can list all requests")
	}
	items, err := s.repo.List(ctx, models.PermissionFilter{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list permissions")
	}
	return s.withLedgers(ctx, items)
}

// Get returns one request with its ledger. Students may only read their own.
func (s *PermissionService) Get(ctx context.Context, permissionID, userID string, role models.UserRole) (*models.Permission, error) {
	p, err := s.readable(ctx, permissionID, userID, role)
	if err != nil {
		return nil, err
	}
	ledger, err := s.repo.ListLedger(ctx, p.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledger")
	}
	p.Ledger = ledger
	return p, nil
}

// Ledger returns the decision trail of a request ordered by level.
func (s *PermissionService) Ledger(ctx context.Context, permissionID, userID string, role models.UserRole) ([]models.LedgerEntry, error) {
	p, err := s.Get(ctx, permissionID, userID, role)
	if err != nil {
		return nil, err
	}
	return p.Ledger, nil
}

func (s *PermissionService) readable(ctx context.Context, permissionID, userID string, role models.UserRole) (*models.Permission, error) {
	p, err := s.repo.GetByID(ctx, permissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "permission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permission")
	}
	if p.StudentID != userID && !role.IsAuthority() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you can only view your own requests")
	}
	return p, nil
}

func (s *PermissionService) withLedgers(ctx context.Context, items []models.Permission) ([]models.Permission, error) {
	if len(items) == 0 {
		return items, nil
	}
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	ledgers, err := s.repo.ListLedgers(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ledgers")
	}
	for i := range items {
		items[i].Ledger = ledgers[items[i].ID]
	}
	return items, nil
}

func (s *PermissionService) loadUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Transient(err, "")
	}
	return user, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
