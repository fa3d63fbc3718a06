package models

import "time"

// UserRole represents the roles taking part in the approval workflow.
type UserRole string

const (
	RoleStudent   UserRole = "student"
	RoleTeacher   UserRole = "teacher"
	RoleHOD       UserRole = "hod"
	RolePrincipal UserRole = "principal"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleHOD, RolePrincipal:
		return true
	}
	return false
}

// IsAuthority reports whether the role reviews requests.
func (r UserRole) IsAuthority() bool {
	return r == RoleTeacher || r == RoleHOD || r == RolePrincipal
}

// Label is the human readable title used in notifications.
func (r UserRole) Label() string {
	switch r {
	case RoleTeacher:
		return "Class Teacher"
	case RoleHOD:
		return "HOD"
	case RolePrincipal:
		return "Principal"
	case RoleStudent:
		return "Student"
	}
	return string(r)
}

// User represents an application user stored in the users table.
type User struct {
	ID                 string    `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	PasswordHash       string    `db:"password_hash" json:"-"`
	FullName           string    `db:"full_name" json:"name"`
	Role               UserRole  `db:"role" json:"role"`
	StudentNumber      *string   `db:"student_number" json:"studentId,omitempty"`
	Department         *string   `db:"department" json:"department,omitempty"`
	ClassName          *string   `db:"class_name" json:"class,omitempty"`
	AssignedDepartment *string   `db:"assigned_department" json:"assignedDepartment,omitempty"`
	AssignedClass      *string   `db:"assigned_class" json:"assignedClass,omitempty"`
	SignatureURL       *string   `db:"signature_url" json:"digitalSignature,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time `db:"updated_at" json:"updatedAt"`
}

// Actor returns the identity the workflow consumes for authorization.
func (u *User) Actor() Actor {
	return Actor{
		ID:                 u.ID,
		Name:               u.FullName,
		Role:               u.Role,
		AssignedDepartment: deref(u.AssignedDepartment),
		AssignedClass:      deref(u.AssignedClass),
		SignatureURL:       deref(u.SignatureURL),
	}
}

// Actor is an authenticated identity acting on a permission.
type Actor struct {
	ID                 string
	Name               string
	Role               UserRole
	AssignedDepartment string
	AssignedClass      string
	SignatureURL       string
}

// TeacherOption is the projection used by students when choosing a reviewer.
type TeacherOption struct {
	ID                 string  `db:"id" json:"id"`
	Name               string  `db:"full_name" json:"name"`
	Email              string  `db:"email" json:"email"`
	AssignedDepartment *string `db:"assigned_department" json:"assignedDepartment,omitempty"`
	AssignedClass      *string `db:"assigned_class" json:"assignedClass,omitempty"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
