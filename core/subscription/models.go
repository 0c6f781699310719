package subscription

import (
	"time"

	"github.com/trezcool/darasa/core"
)

// Plans
const (
	PlanFree  = "free"
	PlanBasic = "basic"
	PlanPro   = "pro"
)

type Plan struct {
	Name        string `json:"name"`
	CourseLimit int    `json:"course_limit"`
}

var (
	Plans = []Plan{
		{Name: PlanFree, CourseLimit: 1},
		{Name: PlanBasic, CourseLimit: 5},
		{Name: PlanPro, CourseLimit: 25},
	}
	PlanNames = []string{PlanFree, PlanBasic, PlanPro}
)

func GetPlan(name string) (Plan, bool) {
	for _, p := range Plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// SubscriptionHistory is the (single) subscription of a user.
// Expiry is never stored: it is computed from the start date and duration on every check.
type SubscriptionHistory struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	Plan         string    `db:"plan" json:"plan"`
	StartDate    time.Time `db:"start_date" json:"start_date"`
	DurationDays int       `db:"duration_days" json:"duration_days"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (s SubscriptionHistory) ExpiresAt() time.Time {
	return s.StartDate.AddDate(0, 0, s.DurationDays)
}

func (s SubscriptionHistory) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt())
}

func (s SubscriptionHistory) CourseLimit() int {
	p, _ := GetPlan(s.Plan)
	return p.CourseLimit
}

// Status is the API representation of a SubscriptionHistory.
type Status struct {
	SubscriptionHistory
	ExpiresAt   time.Time `json:"expires_at"`
	Expired     bool      `json:"expired"`
	CourseLimit int       `json:"course_limit"`
}

func (s SubscriptionHistory) Status(now time.Time) Status {
	return Status{
		SubscriptionHistory: s,
		ExpiresAt:           s.ExpiresAt(),
		Expired:             s.IsExpired(now),
		CourseLimit:         s.CourseLimit(),
	}
}

// Purchase contains what is needed to start (or restart) a subscription.
type Purchase struct {
	UserID       string `json:"user_id" validate:"required"`
	Plan         string `json:"plan" validate:"required,oneof=free basic pro"`
	DurationDays int    `json:"duration_days" validate:"required,min=1,max=3660"`
}

func (p *Purchase) Clean() {
	p.UserID = core.CleanString(p.UserID)
	p.Plan = core.CleanString(p.Plan, true /* lower */)
}

// Change defines what may be changed on an existing subscription.
type Change struct {
	Plan         string `json:"plan" validate:"omitempty,oneof=free basic pro"`
	DurationDays int    `json:"duration_days" validate:"omitempty,min=1,max=3660"`
}

func (c *Change) Clean() {
	c.Plan = core.CleanString(c.Plan, true /* lower */)
}
