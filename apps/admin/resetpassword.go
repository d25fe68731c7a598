package main

import (
	"context"
	"fmt"
)

// resetPassword sets a temporary password; the user must change it on next login.
func (cli *commandLine) resetPassword(uname, pwd string) error {
	usr, err := cli.usrSvc.ResetPassword(context.Background(), uname, pwd)
	if err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("password of user %q reset", usr.ID))
	return nil
}
