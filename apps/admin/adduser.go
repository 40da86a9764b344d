package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/user"
)

// addUser creates a user.User, or updates and reactivates the one owning nu.Email.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	usr, err := cli.usrSvc.GetByEmail(ctx, nu.Email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return err
		}
		if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, nu)
		return err
	}

	active := true
	uu := user.UpdateUser{
		Name:            nu.Name,
		Program:         nu.Program,
		Role:            nu.Role,
		IsActive:        &active,
		Password:        nu.Password,
		PasswordConfirm: nu.PasswordConfirm,
	}
	if err := uu.Validate(ctx, usr, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	_, err = cli.usrSvc.Update(ctx, usr, uu)
	return err
}
