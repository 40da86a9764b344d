package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/storage/database"
)

var gooseRunFunc = database.Migrate // mockable

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errors.New("migrate requires a postgres database")
	}
	return gooseRunFunc(ctx, cli.db, args[0], args[1:]...)
}
