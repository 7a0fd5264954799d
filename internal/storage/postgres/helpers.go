package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// nullString maps "" to SQL NULL.
func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}
