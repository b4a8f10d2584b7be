package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yeremiapane/table-manager/models"
	"github.com/yeremiapane/table-manager/repository"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateName    = errors.New("table name already exists")
	ErrNotFound         = errors.New("table not found")
	ErrStoreUnavailable = errors.New("table store unavailable")
)

// DuplicateNamesError rejects a whole bulk create batch. It matches ErrDuplicateName.
type DuplicateNamesError struct {
	Names []string
}

func (e *DuplicateNamesError) Error() string {
	return "table names already exist: " + strings.Join(e.Names, ", ")
}

func (e *DuplicateNamesError) Is(target error) bool {
	return target == ErrDuplicateName
}

// BulkFailure is one failed constituent of a bulk operation, keyed by table name or id.
type BulkFailure struct {
	Key string
	Err error
}

// BulkError reports the constituents of a bulk operation that failed. The ones that
// are not listed succeeded and stay applied.
type BulkError struct {
	Op       string
	Total    int
	Failures []BulkFailure
}

func (e *BulkError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s (%v)", f.Key, f.Err))
	}
	return fmt.Sprintf("bulk %s: %d of %d failed: %s", e.Op, len(e.Failures), e.Total, strings.Join(parts, "; "))
}

func (e *BulkError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// Keys lists the failed names or ids in request order.
func (e *BulkError) Keys() []string {
	keys := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		keys = append(keys, f.Key)
	}
	return keys
}

func (e *BulkError) add(key string, err error) {
	e.Failures = append(e.Failures, BulkFailure{Key: key, Err: err})
}

// mapStoreError lifts repository errors into the service taxonomy, keeping the
// original message.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrDuplicateName):
		return fmt.Errorf("%w: %v", ErrDuplicateName, err)
	case errors.Is(err, models.ErrInvalidStatus):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	default:
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
}
