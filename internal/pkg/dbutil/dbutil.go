package dbutil

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Rebind rewrites a ?-placeholder query into postgres $N form.
func Rebind(query string) string {
	return sqlx.Rebind(sqlx.DOLLAR, query)
}

// IsConflict reports whether err is a postgres unique-violation error.
func IsConflict(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
