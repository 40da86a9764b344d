package main

import (
	"context"

	"github.com/trezcool/ratiba/core/user"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd, confirm string) error {
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	uu := user.UpdateUser{Password: pwd, PasswordConfirm: confirm}
	if err := uu.Validate(ctx, usr, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	_, err = cli.usrSvc.Update(ctx, usr, uu)
	return err
}
