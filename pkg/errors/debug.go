package errors

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Postgres SQLSTATE classes the API maps to public codes.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
	sqlStateSerialization       = "40001"
	sqlStateDeadlock            = "40P01"
	sqlStateLockNotAvailable    = "55P03"
)

type pgDiag struct {
	code, constraint, table, column, detail, message string
}

func postgresDiag(err error) (pgDiag, bool) {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return pgDiag{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}, true
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return pgDiag{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}, true
	}
	return pgDiag{}, false
}

// Classify returns the typed error in err's chain. Untyped errors are mapped by
// their database or context cause and default to CodeInternal.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	switch {
	case stdErrors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(CodeNotFound, err, "record not found")
	case stdErrors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(CodeConflict, err, "duplicate record")
	case stdErrors.Is(err, context.DeadlineExceeded):
		return Wrap(CodeDependency, err, "upstream timed out")
	}
	if diag, ok := postgresDiag(err); ok {
		switch diag.code {
		case sqlStateUniqueViolation:
			return Wrap(CodeConflict, err, "duplicate record")
		case sqlStateForeignKeyViolation, sqlStateCheckViolation:
			return Wrap(CodeValidation, err, "referenced record is invalid")
		case sqlStateSerialization, sqlStateDeadlock, sqlStateLockNotAvailable:
			return Wrap(CodeDependency, err, "database contention")
		}
	}
	return Wrap(CodeInternal, err, "unexpected error")
}

// LogFields flattens err into structured log fields: the code, the unwrap chain
// and any postgres diagnostics. Empty values are omitted.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = string(typed.Code())
	}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	if diag, ok := postgresDiag(err); ok {
		for key, value := range map[string]string{
			"pg_code":       diag.code,
			"pg_constraint": diag.constraint,
			"pg_table":      diag.table,
			"pg_column":     diag.column,
			"pg_detail":     diag.detail,
			"pg_message":    diag.message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}
