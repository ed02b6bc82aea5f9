// Package sqlxrepos implements the core repositories with sqlx.
// Queries are written with "?" placeholders and rebound for the executor's driver.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/fourmis/core"
)

const (
	pgUniqueViolation = "23505"

	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

type baseRepository struct {
	db core.DBExecutor
}

// executor returns the transaction passed to a repository method, if any.
func (repo baseRepository) executor(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return repo.db
}

func get(ctx context.Context, ex core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, ex, dest, ex.Rebind(query), args...)
}

func selectAll(ctx context.Context, ex core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, ex, dest, ex.Rebind(query), args...)
}

func execute(ctx context.Context, ex core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	return ex.ExecContext(ctx, ex.Rebind(query), args...)
}

// in expands the slice arguments of an "IN (?)" query.
func in(query string, args ...interface{}) (string, []interface{}, error) {
	return sqlx.In(query, args...)
}

// execAffected executes the query and returns the number of affected rows.
func execAffected(ctx context.Context, ex core.DBExecutor, query string, args ...interface{}) (int, error) {
	res, err := execute(ctx, ex, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// isUniqueViolation reports whether err was caused by a unique index or primary key violation.
func isUniqueViolation(err error) bool {
	err = errors.Cause(err)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}

	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		if c := coded.Code(); c == sqliteConstraintUnique || c == sqliteConstraintPrimaryKey {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// utc normalizes times read from the database.
func utc(t time.Time) time.Time {
	return t.UTC()
}

// whereClause collects "AND"ed conditions and their arguments.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
