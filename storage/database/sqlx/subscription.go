package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/subscription"
)

type subscriptionRepository struct {
	baseRepo
}

var _ subscription.Repository = (*subscriptionRepository)(nil) // interface compliance check

func NewSubscriptionRepository(exec core.DBExecutor) *subscriptionRepository {
	return &subscriptionRepository{baseRepo{exec: exec}}
}

func (repo subscriptionRepository) GetSubscription(ctx context.Context, userID string, exec ...core.DBExecutor) (subscription.SubscriptionHistory, error) {
	var sub subscription.SubscriptionHistory
	ex := repo.getExec(exec)
	q := ex.Rebind(`SELECT id, user_id, plan, start_date, duration_days, created_at, updated_at
		FROM subscription_histories WHERE user_id = ?`)
	if err := sqlx.GetContext(ctx, ex, &sub, q, userID); err != nil {
		return subscription.SubscriptionHistory{}, trapNoRowsErr(err, "subscription", userID, "getting subscription")
	}
	return sub, nil
}

func (repo subscriptionRepository) SaveSubscription(ctx context.Context, sub subscription.SubscriptionHistory, exec ...core.DBExecutor) error {
	q := `INSERT INTO subscription_histories (id, user_id, plan, start_date, duration_days, created_at, updated_at)
		VALUES (:id, :user_id, :plan, :start_date, :duration_days, :created_at, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			plan = excluded.plan,
			start_date = excluded.start_date,
			duration_days = excluded.duration_days,
			updated_at = excluded.updated_at`
	_, err := namedExec(ctx, repo.getExec(exec), q, sub)
	return errors.Wrap(err, "saving subscription")
}
