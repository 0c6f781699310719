package subscription

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNoSubscription      = core.NewForbiddenError("an active subscription is required")
	ErrSubscriptionExpired = core.NewForbiddenError("subscription has expired")
	ErrQuotaExceeded       = core.NewForbiddenError("course quota of the subscription plan reached")
)

type (
	Repository interface {
		GetSubscription(ctx context.Context, userID string, exec ...core.DBExecutor) (SubscriptionHistory, error)
		// SaveSubscription inserts the subscription or replaces the one of the same user.
		SaveSubscription(ctx context.Context, sub SubscriptionHistory, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
		now  func() time.Time
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: core.Now}
}

func (svc *Service) Get(ctx context.Context, userID string) (SubscriptionHistory, error) {
	return svc.repo.GetSubscription(ctx, userID)
}

// Purchase starts a subscription for the user; an existing subscription restarts from today.
func (svc *Service) Purchase(ctx context.Context, p Purchase) (SubscriptionHistory, error) {
	if _, ok := GetPlan(p.Plan); !ok {
		return SubscriptionHistory{}, core.NewValidationError(nil, core.FieldError{Field: "plan", Error: "unknown plan"})
	}
	now := svc.now()

	sub, err := svc.repo.GetSubscription(ctx, p.UserID)
	switch {
	case err == nil:
	case core.IsNotFound(err):
		sub = SubscriptionHistory{ID: core.NewID(), UserID: p.UserID, CreatedAt: now}
	default:
		return SubscriptionHistory{}, errors.Wrap(err, "getting subscription")
	}
	sub.Plan = p.Plan
	sub.StartDate = now
	sub.DurationDays = p.DurationDays
	sub.UpdatedAt = now

	if err = svc.repo.SaveSubscription(ctx, sub); err != nil {
		return SubscriptionHistory{}, errors.Wrap(err, "saving subscription")
	}
	return sub, nil
}

// Change changes the plan and/or duration of an existing subscription, keeping its start date.
func (svc *Service) Change(ctx context.Context, userID string, c Change) (SubscriptionHistory, error) {
	sub, err := svc.repo.GetSubscription(ctx, userID)
	if err != nil {
		return SubscriptionHistory{}, err
	}
	if c.Plan != "" {
		if _, ok := GetPlan(c.Plan); !ok {
			return SubscriptionHistory{}, core.NewValidationError(nil, core.FieldError{Field: "plan", Error: "unknown plan"})
		}
		sub.Plan = c.Plan
	}
	if c.DurationDays > 0 {
		sub.DurationDays = c.DurationDays
	}
	sub.UpdatedAt = svc.now()

	if err = svc.repo.SaveSubscription(ctx, sub); err != nil {
		return SubscriptionHistory{}, errors.Wrap(err, "saving subscription")
	}
	return sub, nil
}

func (svc *Service) active(ctx context.Context, userID string) (SubscriptionHistory, error) {
	sub, err := svc.repo.GetSubscription(ctx, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return SubscriptionHistory{}, ErrNoSubscription
		}
		return SubscriptionHistory{}, errors.Wrap(err, "getting subscription")
	}
	if sub.IsExpired(svc.now()) {
		return SubscriptionHistory{}, ErrSubscriptionExpired
	}
	return sub, nil
}

// CanCreateCourse checks that the user may own one more course than the ownedCount they already own.
func (svc *Service) CanCreateCourse(ctx context.Context, userID string, ownedCount int) error {
	sub, err := svc.active(ctx, userID)
	if err != nil {
		return err
	}
	if ownedCount >= sub.CourseLimit() {
		return ErrQuotaExceeded
	}
	return nil
}

// CanUpdateCourse checks that the user holds an unexpired subscription.
func (svc *Service) CanUpdateCourse(ctx context.Context, userID string) error {
	_, err := svc.active(ctx, userID)
	return err
}
