package service

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrIDRequired       = errors.New("content type and id are required")
	ErrAuthorRequired   = errors.New("author id is required")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("content already exists")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflictDetected = errors.New("conflict detected")
	ErrUpdateNotFound   = errors.New("pending update not found")
)

// ConflictError names the version that won against a rejected optimistic update.
type ConflictError struct {
	VersionNumber int
	AuthorID      string
	CreatedAt     time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: version %d by %s was committed at %s",
		ErrConflictDetected, e.VersionNumber, e.AuthorID, e.CreatedAt.Format(time.RFC3339))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflictDetected
}

// ValidationError lists why a payload was rejected.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return ErrValidationFailed.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// notFound maps a repository miss to ErrNotFound and leaves other errors alone.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
