package repoerr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/yungbote/studypath-backend/internal/pkg/errors"
)

// Postgres error codes worth distinguishing at the repo boundary.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgDeadlockDetected    = "40P01"
)

// Map folds driver-level failures into the shared sentinels so callers can
// branch with errors.Is instead of sniffing strings.
func Map(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, apperrors.ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, apperrors.ErrInvalidArgument)
		case pgDeadlockDetected:
			return fmt.Errorf("%s: deadlock: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
