package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

// maxParams bounds the bind parameters of one statement (sqlite allows 999 by default).
const maxParams = 900

type baseRepo struct {
	exec core.DBExecutor
}

func (repo baseRepo) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps "no rows" errors to a *core.NotFoundError.
func trapNoRowsErr(err error, resource, id, msg string) error {
	if err == sql.ErrNoRows {
		return core.NewNotFoundError(resource, id)
	}
	return errors.Wrap(err, msg)
}

// isUniqueViolation reports whether err is a unique constraint violation, on postgres or sqlite.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// trapUniqueErr maps unique violations to a *core.ConflictError on flds.
func trapUniqueErr(err error, msg string, flds ...string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return core.NewConflictError(flds...)
	}
	return errors.Wrap(err, msg)
}

// checkAffected returns a *core.NotFoundError when a write touched no row.
func checkAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return core.NewNotFoundError(resource, id)
	}
	return nil
}

// selectIn runs a query with an IN (?) clause on values, in chunks.
func selectIn(ctx context.Context, exec core.DBExecutor, dest func(rows *sqlx.Rows) error, query string, values []string, args ...interface{}) error {
	chunk := maxParams - len(args)
	for start := 0; start < len(values); start += chunk {
		end := start + chunk
		if end > len(values) {
			end = len(values)
		}
		q, qArgs, err := sqlx.In(query, append(append([]interface{}{}, args...), values[start:end])...)
		if err != nil {
			return errors.Wrap(err, "expanding query")
		}
		rows, err := exec.QueryxContext(ctx, exec.Rebind(q), qArgs...)
		if err != nil {
			return err
		}
		for rows.Next() {
			if err = dest(rows); err != nil {
				_ = rows.Close()
				return err
			}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// bulkInsert inserts rows in chunks with ON CONFLICT DO NOTHING, and returns the number of rows written.
// row(i) returns the values of the i-th row, in the order of cols.
func bulkInsert(ctx context.Context, exec core.DBExecutor, table string, cols []string, n int, row func(i int) []interface{}) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	prefix := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES "
	perChunk := maxParams / len(cols)

	var written int64
	for start := 0; start < n; start += perChunk {
		end := start + perChunk
		if end > n {
			end = n
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*len(cols))
		for i := start; i < end; i++ {
			values = append(values, placeholders)
			args = append(args, row(i)...)
		}
		q := prefix + strings.Join(values, ", ") + " ON CONFLICT DO NOTHING"
		res, err := exec.ExecContext(ctx, exec.Rebind(q), args...)
		if err != nil {
			return written, errors.Wrapf(err, "inserting into %s", table)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return written, errors.Wrap(err, "counting inserted rows")
		}
		written += affected
	}
	return written, nil
}

// namedParams returns ":col" for each column.
func namedParams(cols []string) string {
	params := make([]string, 0, len(cols))
	for _, c := range cols {
		params = append(params, ":"+c)
	}
	return strings.Join(params, ", ")
}

// namedSets returns "col = :col" for each column.
func namedSets(cols []string) string {
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		sets = append(sets, c+" = :"+c)
	}
	return strings.Join(sets, ", ")
}

func namedExec(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) (sql.Result, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "binding named query")
	}
	return exec.ExecContext(ctx, exec.Rebind(q), args...)
}
