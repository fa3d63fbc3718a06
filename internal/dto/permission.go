package dto

import (
	"github.com/ecas/approval-api/internal/models"
)

// DateLayout is the wire format of fromDate and toDate.
const DateLayout = "2006-01-02"

// SubmitPermissionRequest is the student submission payload, JSON or multipart.
type SubmitPermissionRequest struct {
	Category             models.Category `json:"category" form:"category" validate:"required"`
	Subcategory          string          `json:"subcategory" form:"subcategory"`
	TemplateContent      string          `json:"templateContent" form:"templateContent" validate:"required"`
	Reason               string          `json:"reason" form:"reason" validate:"required"`
	FromDate             string          `json:"fromDate" form:"fromDate" validate:"required"`
	ToDate               string          `json:"toDate" form:"toDate" validate:"required"`
	TargetDepartment     string          `json:"targetDepartment" form:"targetDepartment"`
	AssignedTeacherID    string          `json:"assignedTeacherId" form:"assignedTeacherId" validate:"required"`
	AssignedTeacherName  string          `json:"assignedTeacherName" form:"assignedTeacherName" validate:"required"`
	AssignedTeacherEmail string          `json:"assignedTeacherEmail" form:"assignedTeacherEmail" validate:"required,email"`
}

// Upload is an in-memory file received with a request.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RejectPermissionRequest carries the optional rejection reason.
type RejectPermissionRequest struct {
	Reason string `json:"reason"`
}

// TransitionResponse is returned by approve and reject.
type TransitionResponse struct {
	Message    string             `json:"message"`
	Permission *models.Permission `json:"permission"`
}

// UnreadCountResponse wraps the unread notification counter.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MarkAllReadResponse reports how many notifications were updated.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
