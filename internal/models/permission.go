package models

import (
	"time"

	"github.com/lib/pq"
)

// Category enumerates the request types students can submit.
type Category string

const (
	CategoryIndustrialTraining   Category = "Industrial Training"
	CategoryScholarship          Category = "Scholarship"
	CategoryOriginalCertificates Category = "Original Certificates"
	CategoryRailwayConcession    Category = "Railway Concession"
	CategoryEventPermission      Category = "Event/Activity Permission"
)

// Railway concession subcategories.
const (
	SubcategorySeasonTicket    = "Season Ticket"
	SubcategoryEducationalTour = "Educational Tour/Industrial Training"
)

// Categories lists every supported category in display order.
var Categories = []Category{
	CategoryIndustrialTraining,
	CategoryScholarship,
	CategoryOriginalCertificates,
	CategoryRailwayConcession,
	CategoryEventPermission,
}

// Valid reports whether c is a supported category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// AllowsTargetDepartment reports whether requests of this category may be routed
// through a second department's HOD.
func (c Category) AllowsTargetDepartment() bool {
	return c == CategoryIndustrialTraining || c == CategoryEventPermission
}

// Subcategories returns the allowed subcategories, nil when the category has none.
func (c Category) Subcategories() []string {
	if c == CategoryRailwayConcession {
		return []string{SubcategorySeasonTicket, SubcategoryEducationalTour}
	}
	return nil
}

// Status captures the overall request state.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// DefaultRejectionReason is stored when a reviewer rejects without giving a reason.
const DefaultRejectionReason = "Not specified"

// Permission is a student request moving through the approval chain.
type Permission struct {
	ID                   string    `db:"id" json:"id"`
	ReferenceID          string    `db:"reference_id" json:"referenceId"`
	StudentID            string    `db:"student_id" json:"studentId"`
	StudentName          string    `db:"student_name" json:"studentName"`
	StudentEmail         string    `db:"student_email" json:"studentEmail"`
	StudentDepartment    string    `db:"student_department" json:"studentDepartment"`
	StudentClass         string    `db:"student_class" json:"studentClass"`
	StudentSignature     *string   `db:"student_signature" json:"studentSignature,omitempty"`
	Category             Category  `db:"category" json:"category"`
	Subcategory          *string   `db:"subcategory" json:"subcategory,omitempty"`
	TemplateContent      string    `db:"template_content" json:"templateContent"`
	Reason               string    `db:"reason" json:"reason"`
	FromDate             time.Time `db:"from_date" json:"fromDate"`
	ToDate               time.Time `db:"to_date" json:"toDate"`
	TargetDepartment     *string   `db:"target_department" json:"targetDepartment,omitempty"`
	DocumentURL          *string   `db:"document_url" json:"documentFile,omitempty"`
	AssignedTeacherID    string    `db:"assigned_teacher_id" json:"assignedTeacherId"`
	AssignedTeacherName  string    `db:"assigned_teacher_name" json:"assignedTeacherName"`
	AssignedTeacherEmail string    `db:"assigned_teacher_email" json:"assignedTeacherEmail"`
	CurrentLevel         int       `db:"current_level" json:"currentLevel"`
	Status               Status    `db:"status" json:"status"`

	TeacherApprovedBy       *string    `db:"teacher_approved_by" json:"teacherApprovedBy,omitempty"`
	TeacherApprovedByName   *string    `db:"teacher_approved_by_name" json:"teacherApprovedByName,omitempty"`
	TeacherSignature        *string    `db:"teacher_signature" json:"teacherSignature,omitempty"`
	TeacherApprovedAt       *time.Time `db:"teacher_approved_at" json:"teacherApprovedDate,omitempty"`
	HODApprovedBy           *string    `db:"hod_approved_by" json:"hodApprovedBy,omitempty"`
	HODApprovedByName       *string    `db:"hod_approved_by_name" json:"hodApprovedByName,omitempty"`
	HODSignature            *string    `db:"hod_signature" json:"hodSignature,omitempty"`
	HODApprovedAt           *time.Time `db:"hod_approved_at" json:"hodApprovedDate,omitempty"`
	TargetHODApprovedBy     *string    `db:"target_hod_approved_by" json:"targetHodApprovedBy,omitempty"`
	TargetHODApprovedByName *string    `db:"target_hod_approved_by_name" json:"targetHodApprovedByName,omitempty"`
	TargetHODSignature      *string    `db:"target_hod_signature" json:"targetHodSignature,omitempty"`
	TargetHODApprovedAt     *time.Time `db:"target_hod_approved_at" json:"targetHodApprovedDate,omitempty"`
	PrincipalApprovedBy     *string    `db:"principal_approved_by" json:"principalApprovedBy,omitempty"`
	PrincipalApprovedByName *string    `db:"principal_approved_by_name" json:"principalApprovedByName,omitempty"`
	PrincipalSignature      *string    `db:"principal_signature" json:"principalSignature,omitempty"`
	PrincipalApprovedAt     *time.Time `db:"principal_approved_at" json:"principalApprovedDate,omitempty"`

	RejectionReason *string    `db:"rejection_reason" json:"rejectionReason,omitempty"`
	RejectedBy      *string    `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`

	ApprovalHistory pq.StringArray `db:"approval_history" json:"approvalHistory"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completedAt,omitempty"`

	Ledger []LedgerEntry `db:"-" json:"ledger,omitempty"`
}

// HasTargetDepartment reports whether the request takes the level-3 detour.
func (p *Permission) HasTargetDepartment() bool {
	return p.TargetDepartment != nil && *p.TargetDepartment != ""
}

// ApproverName returns the cached approver name for a ledger role.
func (p *Permission) ApproverName(role LedgerRole) string {
	switch role {
	case LedgerRoleTeacher:
		return deref(p.TeacherApprovedByName)
	case LedgerRoleHOD:
		return deref(p.HODApprovedByName)
	case LedgerRoleTargetHOD:
		return deref(p.TargetHODApprovedByName)
	case LedgerRolePrincipal:
		return deref(p.PrincipalApprovedByName)
	}
	return ""
}

// RecordApproval caches the approver of the given ledger role on the permission row.
func (p *Permission) RecordApproval(role LedgerRole, actor Actor, at time.Time) {
	id, name := actor.ID, actor.Name
	signature := optional(actor.SignatureURL)
	ts := at
	switch role {
	case LedgerRoleTeacher:
		p.TeacherApprovedBy, p.TeacherApprovedByName, p.TeacherSignature, p.TeacherApprovedAt = &id, &name, signature, &ts
	case LedgerRoleHOD:
		p.HODApprovedBy, p.HODApprovedByName, p.HODSignature, p.HODApprovedAt = &id, &name, signature, &ts
	case LedgerRoleTargetHOD:
		p.TargetHODApprovedBy, p.TargetHODApprovedByName, p.TargetHODSignature, p.TargetHODApprovedAt = &id, &name, signature, &ts
	case LedgerRolePrincipal:
		p.PrincipalApprovedBy, p.PrincipalApprovedByName, p.PrincipalSignature, p.PrincipalApprovedAt = &id, &name, signature, &ts
	}
}

// TargetDepartmentName returns the target department or an empty string.
func (p *Permission) TargetDepartmentName() string {
	return deref(p.TargetDepartment)
}

// PermissionFilter constrains listing queries.
type PermissionFilter struct {
	StudentID string
	Status    []Status
	Limit     int
}

// HistorySummary is the denormalised audit row kept per permission.
type HistorySummary struct {
	ID           string     `db:"id" json:"id"`
	PermissionID string     `db:"permission_id" json:"permissionId"`
	StudentID    string     `db:"student_id" json:"studentId"`
	Category     Category   `db:"category" json:"category"`
	Status       Status     `db:"status" json:"status"`
	SubmittedAt  time.Time  `db:"submitted_at" json:"submittedDate"`
	CompletedAt  *time.Time `db:"completed_at" json:"completedDate,omitempty"`
	ReferenceID  string     `db:"reference_id" json:"referenceId"`
}
