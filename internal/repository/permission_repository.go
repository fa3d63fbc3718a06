package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ecas/approval-api/internal/models"
	"github.com/ecas/approval-api/internal/workflow"
)

// ErrStaleTransition is returned when the permission or its ledger entry changed between
// load and write. Callers reload and re-evaluate.
var ErrStaleTransition = errors.New("permission changed concurrently")

const permissionColumns = `id, reference_id, student_id, student_name, student_email, student_department, student_class,
	student_signature, category, subcategory, template_content, reason, from_date, to_date, target_department,
	document_url, assigned_teacher_id, assigned_teacher_name, assigned_teacher_email, current_level, status,
	teacher_approved_by, teacher_approved_by_name, teacher_signature, teacher_approved_at,
	hod_approved_by, hod_approved_by_name, hod_signature, hod_approved_at,
	target_hod_approved_by, target_hod_approved_by_name, target_hod_signature, target_hod_approved_at,
	principal_approved_by, principal_approved_by_name, principal_signature, principal_approved_at,
	rejection_reason, rejected_by, rejected_at, approval_history, created_at, completed_at`

const ledgerColumns = `id, permission_id, level, role, decision, actor_id, actor_name, actor_signature,
	rejection_reason, decided_at, created_at`

// PermissionRepository persists permissions together with their ledger, history summary and
// notifications.
type PermissionRepository struct {
	db *sqlx.DB
}

// NewPermissionRepository constructs the repository.
func NewPermissionRepository(db *sqlx.DB) *PermissionRepository {
	return &PermissionRepository{db: db}
}

// Create stores a new permission at level 1. The reference id is drawn from the monthly
// sequence in the same transaction as the permission, its first ledger entry and its
// history summary.
func (r *PermissionRepository) Create(ctx context.Context, p *models.Permission) (err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Status = models.StatusPending
	p.CurrentLevel = workflow.LevelTeacher
	p.ApprovalHistory = pq.StringArray{}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin permission transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const sequenceQuery = `INSERT INTO reference_sequences (period, value) VALUES ($1, 1)
	ON CONFLICT (period) DO UPDATE SET value = reference_sequences.value + 1 RETURNING value`
	var seq int
	if err = tx.GetContext(ctx, &seq, sequenceQuery, workflow.ReferencePeriod(p.CreatedAt)); err != nil {
		return fmt.Errorf("next reference sequence: %w", err)
	}
	p.ReferenceID = workflow.FormatReference(p.CreatedAt, seq)

	const insertPermission = `INSERT INTO permissions (id, reference_id, student_id, student_name, student_email,
	student_department, student_class, student_signature, category, subcategory, template_content, reason,
	from_date, to_date, target_department, document_url, assigned_teacher_id, assigned_teacher_name,
	assigned_teacher_email, current_level, status, approval_history, created_at)
	VALUES (:id, :reference_id, :student_id, :student_name, :student_email, :student_department, :student_class,
	:student_signature, :category, :subcategory, :template_content, :reason, :from_date, :to_date,
	:target_department, :document_url, :assigned_teacher_id, :assigned_teacher_name, :assigned_teacher_email,
	:current_level, :status, :approval_history, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertPermission, p); err != nil {
		return fmt.Errorf("insert permission: %w", err)
	}

	entry := models.LedgerEntry{
		PermissionID: p.ID,
		Level:        workflow.LevelTeacher,
		Role:         models.LedgerRoleTeacher,
		Decision:     models.DecisionPending,
		CreatedAt:    p.CreatedAt,
	}
	if err = insertLedgerEntry(ctx, tx, &entry); err != nil {
		return err
	}
	p.Ledger = []models.LedgerEntry{entry}

	const insertHistory = `INSERT INTO history_summaries (id, permission_id, student_id, category, status, submitted_at)
	VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err = tx.ExecContext(ctx, insertHistory, uuid.NewString(), p.ID, p.StudentID, p.Category, p.Status, p.CreatedAt); err != nil {
		return fmt.Errorf("insert history summary: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit permission transaction: %w", err)
	}
	return nil
}

func insertLedgerEntry(ctx context.Context, exec sqlx.ExtContext, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ledger_entries (` + ledgerColumns + `)
	VALUES (:id, :permission_id, :level, :role, :decision, :actor_id, :actor_name, :actor_signature,
	:rejection_reason, :decided_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, entry); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// GetByID fetches a permission without its ledger.
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*models.Permission, error) {
	query := `SELECT ` + permissionColumns + ` FROM permissions WHERE id = $1`
	var p models.Permission
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get permission: %w", err)
	}
	return &p, nil
}

// List returns permissions matching the filter, newest first.
func (r *PermissionRepository) List(ctx context.Context, filter models.PermissionFilter) ([]models.Permission, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + permissionColumns + ` FROM permissions`)

	conditions := make([]string, 0, 2)
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
	}

	permissions := make([]models.Permission, 0)
	if err := r.db.SelectContext(ctx, &permissions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	return permissions, nil
}

// ListPending returns the pending permissions awaiting actor, built from the gates the
// actor's role can pass.
func (r *PermissionRepository) ListPending(ctx context.Context, actor models.Actor) ([]models.Permission, error) {
	args := make([]interface{}, 0, 4)
	clauses := make([]string, 0, 2)
	for _, gate := range workflow.GatesFor(actor.Role) {
		clause, ok := scopeClause(gate, actor, &args)
		if !ok {
			continue
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return []models.Permission{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM permissions WHERE status = '%s' AND (%s) ORDER BY created_at DESC`,
		permissionColumns, models.StatusPending, strings.Join(clauses, " OR "))
	permissions := make([]models.Permission, 0)
	if err := r.db.SelectContext(ctx, &permissions, query, args...); err != nil {
		return nil, fmt.Errorf("list pending permissions: %w", err)
	}
	return permissions, nil
}

// scopeClause renders the SQL equivalent of gate.Scope.Matches. It reports false when the
// actor can never match the gate.
func scopeClause(gate workflow.Gate, actor models.Actor, args *[]interface{}) (string, bool) {
	*args = append(*args, gate.Level)
	level := fmt.Sprintf("current_level = $%d", len(*args))

	var column, value string
	switch gate.Scope {
	case workflow.ScopeAny:
		return level, true
	case workflow.ScopeAssignedTeacher:
		column, value = "assigned_teacher_id", actor.ID
	case workflow.ScopeHomeDepartment:
		column, value = "student_department", actor.AssignedDepartment
	case workflow.ScopeTargetDepartment:
		column, value = "target_department", actor.AssignedDepartment
	default:
		*args = (*args)[:len(*args)-1]
		return "", false
	}
	if value == "" {
		*args = (*args)[:len(*args)-1]
		return "", false
	}
	*args = append(*args, value)
	return fmt.Sprintf("(%s AND %s = $%d)", level, column, len(*args)), true
}

// ListLedger returns the ledger of one permission ordered by level.
func (r *PermissionRepository) ListLedger(ctx context.Context, permissionID string) ([]models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE permission_id = $1 ORDER BY level`
	entries := make([]models.LedgerEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, permissionID); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

// ListLedgers returns the ledgers of many permissions keyed by permission id.
func (r *PermissionRepository) ListLedgers(ctx context.Context, permissionIDs []string) (map[string][]models.LedgerEntry, error) {
	result := make(map[string][]models.LedgerEntry, len(permissionIDs))
	if len(permissionIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE permission_id = ANY($1) ORDER BY permission_id, level`
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, pq.Array(permissionIDs)); err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	for _, entry := range entries {
		result[entry.PermissionID] = append(result[entry.PermissionID], entry)
	}
	return result, nil
}

// GetLedgerEntry fetches the ledger entry of a permission at a level.
func (r *PermissionRepository) GetLedgerEntry(ctx context.Context, permissionID string, level int) (*models.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE permission_id = $1 AND level = $2`
	var entry models.LedgerEntry
	if err := r.db.GetContext(ctx, &entry, query, permissionID, level); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return &entry, nil
}

// transitionRow binds the permission columns plus the level the transition started from.
type transitionRow struct {
	models.Permission
	FromLevel int `db:"from_level"`
}

// ApplyTransition persists a computed outcome atomically: permission row, closed and opened
// ledger entries, history summary on terminal outcomes, and the requester notification.
// ErrStaleTransition is returned when another action got there first.
func (r *PermissionRepository) ApplyTransition(ctx context.Context, out *workflow.Outcome) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current struct {
		Status       models.Status `db:"status"`
		CurrentLevel int           `db:"current_level"`
	}
	const lockQuery = `SELECT status, current_level FROM permissions WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, out.Permission.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock permission: %w", err)
	}
	if current.Status != models.StatusPending || current.CurrentLevel != out.FromLevel {
		err = ErrStaleTransition
		return err
	}

	const updatePermission = `UPDATE permissions SET
	current_level = :current_level, status = :status,
	teacher_approved_by = :teacher_approved_by, teacher_approved_by_name = :teacher_approved_by_name,
	teacher_signature = :teacher_signature, teacher_approved_at = :teacher_approved_at,
	hod_approved_by = :hod_approved_by, hod_approved_by_name = :hod_approved_by_name,
	hod_signature = :hod_signature, hod_approved_at = :hod_approved_at,
	target_hod_approved_by = :target_hod_approved_by, target_hod_approved_by_name = :target_hod_approved_by_name,
	target_hod_signature = :target_hod_signature, target_hod_approved_at = :target_hod_approved_at,
	principal_approved_by = :principal_approved_by, principal_approved_by_name = :principal_approved_by_name,
	principal_signature = :principal_signature, principal_approved_at = :principal_approved_at,
	rejection_reason = :rejection_reason, rejected_by = :rejected_by, rejected_at = :rejected_at,
	approval_history = :approval_history, completed_at = :completed_at
	WHERE id = :id AND status = 'Pending' AND current_level = :from_level`
	result, err := tx.NamedExecContext(ctx, updatePermission, transitionRow{Permission: out.Permission, FromLevel: out.FromLevel})
	if err != nil {
		return fmt.Errorf("update permission: %w", err)
	}
	if err = requireOneRow(result); err != nil {
		return err
	}

	closed := out.Closed
	const closeEntry = `UPDATE ledger_entries SET decision = $2, actor_id = $3, actor_name = $4, actor_signature = $5,
	rejection_reason = $6, decided_at = $7 WHERE id = $1 AND decision = 'Pending'`
	result, err = tx.ExecContext(ctx, closeEntry, closed.ID, closed.Decision, closed.ActorID, closed.ActorName,
		closed.ActorSignature, closed.RejectionReason, closed.DecidedAt)
	if err != nil {
		return fmt.Errorf("close ledger entry: %w", err)
	}
	if err = requireOneRow(result); err != nil {
		return err
	}

	if out.Opened != nil {
		if err = insertLedgerEntry(ctx, tx, out.Opened); err != nil {
			return err
		}
	}

	if out.Terminal() {
		const updateHistory = `UPDATE history_summaries SET status = $2, completed_at = $3 WHERE permission_id = $1`
		if _, err = tx.ExecContext(ctx, updateHistory, out.Permission.ID, out.Permission.Status, out.Permission.CompletedAt); err != nil {
			return fmt.Errorf("update history summary: %w", err)
		}
	}

	if err = insertNotification(ctx, tx, &out.Notice); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transition transaction: %w", err)
	}
	return nil
}

func requireOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrStaleTransition
	}
	return nil
}

// ListHistory returns history summaries with their reference ids, newest first. An empty
// studentID lists every student.
func (r *PermissionRepository) ListHistory(ctx context.Context, studentID string) ([]models.HistorySummary, error) {
	query := `SELECT h.id, h.permission_id, h.student_id, h.category, h.status, h.submitted_at, h.completed_at, p.reference_id
	FROM history_summaries h JOIN permissions p ON p.id = h.permission_id`
	args := make([]interface{}, 0, 1)
	if studentID != "" {
		query += ` WHERE h.student_id = $1`
		args = append(args, studentID)
	}
	query += ` ORDER BY h.submitted_at DESC`

	history := make([]models.HistorySummary, 0)
	if err := r.db.SelectContext(ctx, &history, query, args...); err != nil {
		return nil, fmt.Errorf("list history summaries: %w", err)
	}
	return history, nil
}
