package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ecas/approval-api/internal/models"
	"github.com/ecas/approval-api/internal/repository"
	"github.com/ecas/approval-api/internal/workflow"
	appErrors "github.com/ecas/approval-api/pkg/errors"
)

type stubUserRepo struct {
	users        map[string]*models.User
	createErr    error
	findErr      error
	signatureErr error
	seq          int
}

func newStubUserRepo(users ...*models.User) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (r *stubUserRepo) Create(ctx context.Context, user *models.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	user.ID = fmt.Sprintf("user-%d", r.seq)
	r.users[user.ID] = user
	return nil
}

func (r *stubUserRepo) UpdateSignature(ctx context.Context, id, signatureURL string) error {
	if r.signatureErr != nil {
		return r.signatureErr
	}
	u, ok := r.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.SignatureURL = &signatureURL
	return nil
}

func (r *stubUserRepo) ListTeachers(ctx context.Context) ([]models.TeacherOption, error) {
	var result []models.TeacherOption
	for _, u := range r.users {
		if u.Role == models.RoleTeacher {
			result = append(result, models.TeacherOption{ID: u.ID, Name: u.FullName, Email: u.Email, AssignedDepartment: u.AssignedDepartment})
		}
	}
	return result, nil
}

type stubUploader struct {
	err     error
	folders []string
}

func (u *stubUploader) UploadBytes(ctx context.Context, folder, filename string, b []byte) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.folders = append(u.folders, folder)
	return "https://files.test/" + folder + "/" + filename, nil
}

// stubPermissionStore keeps permissions, ledgers and notices in memory and applies
// transitions with the same compare-and-swap rule as the SQL store.
type stubPermissionStore struct {
	permissions   map[string]*models.Permission
	ledgers       map[string][]models.LedgerEntry
	notices       []models.Notification
	history       []models.HistorySummary
	seq           int
	createErr     error
	transitionErr error
}

func newStubPermissionStore() *stubPermissionStore {
	return &stubPermissionStore{
		permissions: make(map[string]*models.Permission),
		ledgers:     make(map[string][]models.LedgerEntry),
	}
}

func (s *stubPermissionStore) Create(ctx context.Context, p *models.Permission) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	p.ID = fmt.Sprintf("perm-%d", s.seq)
	p.ReferenceID = workflow.FormatReference(p.CreatedAt, s.seq)
	p.Status = models.StatusPending
	p.CurrentLevel = workflow.LevelTeacher
	entry := models.LedgerEntry{
		ID:           fmt.Sprintf("%s-l1", p.ID),
		PermissionID: p.ID,
		Level:        workflow.LevelTeacher,
		Role:         models.LedgerRoleTeacher,
		Decision:     models.DecisionPending,
		CreatedAt:    p.CreatedAt,
	}
	p.Ledger = []models.LedgerEntry{entry}
	stored := *p
	stored.Ledger = nil
	s.permissions[p.ID] = &stored
	s.ledgers[p.ID] = []models.LedgerEntry{entry}
	s.history = append(s.history, models.HistorySummary{PermissionID: p.ID, StudentID: p.StudentID, Category: p.Category, Status: p.Status, SubmittedAt: p.CreatedAt, ReferenceID: p.ReferenceID})
	return nil
}

func (s *stubPermissionStore) GetByID(ctx context.Context, id string) (*models.Permission, error) {
	p, ok := s.permissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (s *stubPermissionStore) List(ctx context.Context, filter models.PermissionFilter) ([]models.Permission, error) {
	result := make([]models.Permission, 0)
	for _, p := range s.permissions {
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *stubPermissionStore) ListPending(ctx context.Context, actor models.Actor) ([]models.Permission, error) {
	result := make([]models.Permission, 0)
	for _, p := range s.permissions {
		if _, err := workflow.Authorize(p, actor); err == nil {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (s *stubPermissionStore) ListLedger(ctx context.Context, permissionID string) ([]models.LedgerEntry, error) {
	return append([]models.LedgerEntry(nil), s.ledgers[permissionID]...), nil
}

func (s *stubPermissionStore) ListLedgers(ctx context.Context, ids []string) (map[string][]models.LedgerEntry, error) {
	result := make(map[string][]models.LedgerEntry, len(ids))
	for _, id := range ids {
		result[id] = append([]models.LedgerEntry(nil), s.ledgers[id]...)
	}
	return result, nil
}

func (s *stubPermissionStore) GetLedgerEntry(ctx context.Context, permissionID string, level int) (*models.LedgerEntry, error) {
	for _, e := range s.ledgers[permissionID] {
		if e.Level == level {
			entry := e
			return &entry, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubPermissionStore) ApplyTransition(ctx context.Context, out *workflow.Outcome) error {
	if s.transitionErr != nil {
		return s.transitionErr
	}
	current, ok := s.permissions[out.Permission.ID]
	if !ok || current.Status != models.StatusPending || current.CurrentLevel != out.FromLevel {
		return repository.ErrStaleTransition
	}
	ledger := s.ledgers[out.Permission.ID]
	for i := range ledger {
		if ledger[i].ID == out.Closed.ID {
			if ledger[i].Decision != models.DecisionPending {
				return repository.ErrStaleTransition
			}
			ledger[i] = out.Closed
		}
	}
	if out.Opened != nil {
		opened := *out.Opened
		opened.ID = fmt.Sprintf("%s-l%d", opened.PermissionID, opened.Level)
		ledger = append(ledger, opened)
	}
	s.ledgers[out.Permission.ID] = ledger
	updated := out.Permission
	s.permissions[updated.ID] = &updated
	s.notices = append(s.notices, out.Notice)
	return nil
}

func (s *stubPermissionStore) ListHistory(ctx context.Context, studentID string) ([]models.HistorySummary, error) {
	result := make([]models.HistorySummary, 0)
	for _, h := range s.history {
		if studentID == "" || h.StudentID == studentID {
			result = append(result, h)
		}
	}
	return result, nil
}

type stubNotificationStore struct {
	items   map[string]*models.Notification
	listErr error
	counts  int
}

func (s *stubNotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	result := make([]models.Notification, 0)
	for _, n := range s.items {
		if n.UserID == userID {
			result = append(result, *n)
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *stubNotificationStore) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	n, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return n, nil
}

func (s *stubNotificationStore) CountUnread(ctx context.Context, userID string) (int, error) {
	s.counts++
	total := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.Read {
			total++
		}
	}
	return total, nil
}

func (s *stubNotificationStore) MarkRead(ctx context.Context, id string) error {
	n, ok := s.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	n.Read = true
	return nil
}

func (s *stubNotificationStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	var updated int64
	for _, n := range s.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			updated++
		}
	}
	return updated, nil
}

type memoryCacheRepo struct {
	values  map[string]int
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: make(map[string]int)}
}

func (c *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	ptr, ok := dest.(*int)
	if !ok {
		return errors.New("unexpected destination")
	}
	*ptr = v
	return nil
}

func (c *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.values[key] = value.(int)
	return nil
}

func (c *memoryCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.values, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

type recordingPublisher struct {
	outcomes []*workflow.Outcome
}

func (p *recordingPublisher) PublishTransition(ctx context.Context, out *workflow.Outcome, actor models.Actor) {
	p.outcomes = append(p.outcomes, out)
}

type recordingInvalidator struct {
	users []string
}

func (r *recordingInvalidator) InvalidateUnread(ctx context.Context, userID string) {
	r.users = append(r.users, userID)
}

func strPtr(s string) *string {
	return &s
}

func errorCode(err error) string {
	return appErrors.FromError(err).Code
}
