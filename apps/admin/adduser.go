package main

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	var roles []string
	if isAdmin {
		roles = user.AllRoles
	}

	usr, err := cli.app.UserSvc.GetByEmail(ctx, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		usr, err = cli.app.UserSvc.Create(ctx, user.NewUser{
			Name:            name,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		})
		if err != nil {
			return err
		}
		cli.logger.Info("user created", usr)
		return nil
	}

	active := true
	usr, err = cli.app.UserSvc.Update(ctx, usr, user.UpdateUser{
		Name:     name,
		Email:    usr.Email,
		IsActive: &active,
		Roles:    roles,
		Password: pwd,
	})
	if err != nil {
		return err
	}
	cli.logger.Info("user updated", usr)
	return nil
}
