package main

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core/subscription"
)

func (cli *commandLine) subscribe(email, plan string, days int) error {
	ctx := context.Background()
	usr, err := cli.app.UserSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	p := subscription.Purchase{UserID: usr.ID, Plan: plan, DurationDays: days}
	p.Clean()
	if err = cli.app.Validate.Struct(p); err != nil {
		return err
	}
	sub, err := cli.app.SubscriptionSvc.Purchase(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s subscribed to %s until %s\n", usr.Email, sub.Plan, sub.ExpiresAt().Format("2006-01-02"))
	return nil
}
