// Package sqlxrepos implements the domain repositories on postgres with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

const uniqueViolation = "23505"

// fatalCodes are the postgres conditions that need the API to be restarted.
var fatalCodes = map[pq.ErrorCode]bool{
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"3D000": true, // invalid_catalog_name: the database was dropped
	"28000": true, // invalid_authorization_specification
}

// trapFatalErr turns fatal postgres errors into core shutdown errors, which stop the server gracefully.
func trapFatalErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && fatalCodes[pqErr.Code] {
		return core.NewShutdownError("database: " + pqErr.Message)
	}
	return err
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var _ core.DBTransactor = (*sqlx.Tx)(nil)

// trapNoRowsErr maps the "no rows" error to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// orderBy translates orderings to ORDER BY items; columns maps ordering fields to column names.
// Unknown fields are skipped.
func orderBy(ordering []core.DBOrdering, columns map[string]string) []string {
	res := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := columns[ord.Field]; ok {
			res = append(res, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	return append(res, "id ASC")
}

// getRow runs a squirrel select expected to return a single row into dest.
func getRow(ctx context.Context, db sqlx.QueryerContext, dest interface{}, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return trapFatalErr(sqlx.GetContext(ctx, db, dest, query, args...))
}

// selectRows runs a squirrel select into the dest slice.
func selectRows(ctx context.Context, db sqlx.QueryerContext, dest interface{}, b sq.SelectBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return trapFatalErr(sqlx.SelectContext(ctx, db, dest, query, args...))
}

// exec runs a squirrel insert/update/delete and returns the number of affected rows.
func exec(ctx context.Context, db sqlx.ExecerContext, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, trapFatalErr(err)
	}
	return res.RowsAffected()
}

// withTx runs fn in a transaction, committing if it succeeds and rolling back otherwise.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(trapFatalErr(err), "beginning transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
