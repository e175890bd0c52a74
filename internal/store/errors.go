package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("record belongs to another user")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation failed")
	ErrNotEditable   = errors.New("only draft sessions can be edited")
	ErrNotCompleted  = errors.New("session is not completed")
)

// mapError converts driver errors into store errors. Context errors pass
// through unchanged.
func mapError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", entity, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", entity, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", entity, ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w: %s", entity, ErrValidation, pgErr.ConstraintName)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w: %s", entity, ErrValidation, pgErr.ConstraintName)
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return fmt.Errorf("%s: %w", entity, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", entity, err)
}
