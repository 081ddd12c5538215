package storage

import (
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
)

func itoa(n int) string { return strconv.Itoa(n) }

// containsPgCode reports whether err is (or wraps) a pgconn.PgError with the
// given SQLSTATE code.
func containsPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
