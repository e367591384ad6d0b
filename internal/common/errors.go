package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound             = errors.New("requested resource not found")
	ErrUnauthorized         = errors.New("unauthorized access")
	ErrForbidden            = errors.New("forbidden access")
	ErrBadRequest           = errors.New("bad request")
	ErrConflict             = errors.New("resource conflict") // e.g., username already exists
	ErrInternalServer       = errors.New("internal server error")
	ErrValidation           = errors.New("validation failed")
	ErrServiceUnavailable   = errors.New("service unavailable")
	ErrValidatorUnavailable = fmt.Errorf("reconstruction validator unavailable: %w", ErrServiceUnavailable)
	ErrStoreUnavailable     = fmt.Errorf("store unavailable: %w", ErrServiceUnavailable)
	ErrLockNotAcquired      = errors.New("failed to acquire lock")
)

// Domain errors. Each wraps the taxonomy kind it is reported as.
var (
	ErrDisciplineNotFound      = fmt.Errorf("discipline not found: %w", ErrNotFound)
	ErrContestNotFound         = fmt.Errorf("contest not found: %w", ErrNotFound)
	ErrNoOngoingContest        = fmt.Errorf("no ongoing contest: %w", ErrNotFound)
	ErrSolveNotFound           = fmt.Errorf("solve not found: %w", ErrNotFound)
	ErrRoundSessionNotFound    = fmt.Errorf("round session not found: %w", ErrNotFound)
	ErrMultipleOngoingContests = fmt.Errorf("more than one contest is marked ongoing: %w", ErrInternalServer)

	ErrRoundSessionFinished  = fmt.Errorf("round session is finished: %w", ErrForbidden)
	ErrSolveAlreadyExists    = fmt.Errorf("solve already exists: %w", ErrForbidden)
	ErrNoScrambleAvailable   = fmt.Errorf("no scramble left in this round: %w", ErrForbidden)
	ErrSolveAlreadySubmitted = fmt.Errorf("solve is no longer pending: %w", ErrForbidden)
	ErrNoExtraScrambles      = fmt.Errorf("no extra scrambles left: %w", ErrForbidden)
	ErrNotSolveOwner         = fmt.Errorf("solve belongs to another user: %w", ErrForbidden)

	ErrScrambleMismatch = fmt.Errorf("scramble is not the current one: %w", ErrBadRequest)
	ErrUnknownScramble  = fmt.Errorf("unknown scramble: %w", ErrBadRequest)
	ErrInvalidTime      = fmt.Errorf("time_ms must not be negative: %w", ErrBadRequest)
	ErrInvalidAction    = fmt.Errorf("unknown submit action: %w", ErrBadRequest)
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrLockNotAcquired) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return http.StatusServiceUnavailable
	}
	if IsUniqueViolation(err) {
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

// IsUniqueViolation reports whether err is a UNIQUE constraint failure from
// either supported driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
