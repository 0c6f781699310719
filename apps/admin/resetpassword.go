package main

import (
	"context"

	"github.com/trezcool/darasa/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.app.UserSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	_, err = cli.app.UserSvc.Update(ctx, usr, user.UpdateUser{
		Name:     usr.Name,
		Email:    usr.Email,
		Password: pwd,
	})
	return err
}
