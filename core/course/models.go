package course

import (
	"time"

	"github.com/trezcool/darasa/core"
)

// Course types
const (
	TypeOpen      = "open"      // anyone may enroll
	TypeModerated = "moderated" // enrollments wait for an instructor/TA
)

// Course roles
const (
	RoleInstructor = "instructor"
	RoleTA         = "ta"
	RoleStudent    = "student"
)

// Membership statuses
const (
	StatusEnrolled   = "enrolled"
	StatusUnenrolled = "unenrolled"
	StatusPending    = "pending"
)

var (
	CourseTypes = []string{TypeOpen, TypeModerated}
	Roles       = []string{RoleInstructor, RoleTA, RoleStudent}
	Statuses    = []string{StatusEnrolled, StatusUnenrolled, StatusPending}
)

type Course struct {
	ID          string    `db:"id" json:"id"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	Title       string    `db:"title" json:"title"`
	Code        string    `db:"code" json:"code"`
	Type        string    `db:"type" json:"type"`
	Published   bool      `db:"published" json:"published"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (c Course) Kind() Kind    { return KindCourse }
func (c Course) Parent() Ref   { return Ref{} }
func (c Course) Owner() string { return c.OwnerID }
func (c Course) Ref() Ref      { return Ref{Kind: KindCourse, ID: c.ID} }
func (c Course) IsOpen() bool  { return c.Type == TypeOpen }

// CourseHistory is the membership of a user in a course. There is at most one per (course, user).
type CourseHistory struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Role      string    `db:"role" json:"role"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (h CourseHistory) Kind() Kind    { return KindCourseHistory }
func (h CourseHistory) Parent() Ref   { return Ref{Kind: KindCourse, ID: h.CourseID} }
func (h CourseHistory) Owner() string { return h.UserID }

func (h CourseHistory) IsInstructorOrTA() bool {
	return h.Role == RoleInstructor || h.Role == RoleTA
}

// Member is a CourseHistory with the member's details.
type Member struct {
	CourseHistory
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required,max=200"`
	Code        string `json:"code" validate:"required,max=32,code"`
	Type        string `json:"type" validate:"omitempty,oneof=open moderated"`
	Published   bool   `json:"published"`
	Description string `json:"description" validate:"max=5000"`
}

func (nc *NewCourse) Clean() {
	nc.Title = core.CleanString(nc.Title)
	nc.Code = core.CleanString(nc.Code)
	nc.Type = core.CleanString(nc.Type, true /* lower */)
	if nc.Type == "" {
		nc.Type = TypeOpen
	}
	nc.Description = core.CleanString(nc.Description)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Code        *string `json:"code" validate:"omitempty,min=1,max=32,code"`
	Type        *string `json:"type" validate:"omitempty,oneof=open moderated"`
	Published   *bool   `json:"published"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
}

func (uc *UpdateCourse) Clean() {
	clean := func(s *string, lower bool) {
		if s != nil {
			*s = core.CleanString(*s, lower)
		}
	}
	clean(uc.Title, false)
	clean(uc.Code, false)
	clean(uc.Type, true)
	clean(uc.Description, false)
}

// UpdateMember changes the role and/or status of a membership.
type UpdateMember struct {
	Role   string `json:"role" validate:"omitempty,oneof=instructor ta student"`
	Status string `json:"status" validate:"omitempty,oneof=enrolled unenrolled pending"`
}

func (um *UpdateMember) Clean() {
	um.Role = core.CleanString(um.Role, true /* lower */)
	um.Status = core.CleanString(um.Status, true /* lower */)
}
