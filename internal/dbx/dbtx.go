// Package dbx holds the small database plumbing shared by all repositories:
// the DBTX query interface and a transaction-scoped runner.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the query surface repositories compile against. *sql.DB and
// *sql.Tx both satisfy it, so the same repository code runs standalone or
// inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction: commit on a nil return, rollback on
// error or panic (the panic is rethrown).
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    if err := repos.Users(tx).UpdatePasswordHash(ctx, id, hash); err != nil {
//	        return err
//	    }
//	    return repos.Sessions(tx).Clear(ctx, id)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
