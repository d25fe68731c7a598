package main

import (
	"context"
	"fmt"

	"github.com/mateatletas/backend/core"
	"github.com/mateatletas/backend/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	if name == "" {
		name = uname
	}
	if name == "" {
		name = email
	}
	if err := user.ValidateNewPassword(pwd).Err(); err != nil {
		return err
	}

	var roles []string
	if isAdmin {
		roles = user.AllRoles
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname, Email: email})
	if err == user.ErrNotFound && email != "" && uname != "" {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	}
	switch err {
	case nil: // update
		if roles != nil {
			usr.Roles = roles
		}
		usr.IsActive = true
		usr.MustChangePassword = false
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
			return err
		}
		cli.logger.Info(fmt.Sprintf("user %q updated", usr.ID))
		return nil

	case user.ErrNotFound: // create
		if err = cli.usrSvc.CheckUniqueness(ctx, uname, email); err != nil {
			return err
		}
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:     name,
			Username: uname,
			Email:    email,
			Password: pwd,
			Roles:    roles,
		})
		if err != nil {
			return err
		}
		cli.logger.Info(fmt.Sprintf("user %q created", usr.ID))
		return nil

	default:
		return err
	}
}
