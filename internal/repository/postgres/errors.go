package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dtroode/tasktracker/internal/model"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

// duplicateFields maps unique constraint names to the field they guard.
var duplicateFields = map[string]string{
	"users_username_key": "username",
	"users_email_key":    "email",
	"users_pkey":         "id",
	"tasks_pkey":         "id",
}

// mapError converts a driver error into the model error taxonomy.
func mapError(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrPoolExhausted) || errors.Is(err, model.ErrPersistence) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", action, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return model.NewDuplicateError(duplicateField(pgErr))
		case codeForeignKeyViolation:
			return fmt.Errorf("%s: %w", action, model.ErrInvalidReference)
		case codeCheckViolation:
			return model.NewValidationError(checkField(pgErr.ConstraintName), "violates constraint "+pgErr.ConstraintName)
		}
	}

	return fmt.Errorf("%w: %s: %w", model.ErrPersistence, action, err)
}

func duplicateField(pgErr *pgconn.PgError) string {
	if field, ok := duplicateFields[pgErr.ConstraintName]; ok {
		return field
	}
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	return pgErr.ConstraintName
}

// checkField derives the column from names like tasks_status_check.
func checkField(constraint string) string {
	name := strings.TrimPrefix(constraint, "tasks_")
	name = strings.TrimPrefix(name, "users_")
	for _, suffix := range []string{"_check", "_length", "_not_blank", "_matches_status"} {
		name = strings.TrimSuffix(name, suffix)
	}
	if name == "" {
		return constraint
	}
	return name
}
