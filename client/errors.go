package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateName    = errors.New("table name already exists")
	ErrNotFound         = errors.New("table not found")
	ErrStoreUnavailable = errors.New("table store unavailable")
	// ErrNotReady is returned by Manager operations before a successful Load.
	ErrNotReady = errors.New("table list not loaded")
)

// APIError is a non-2xx answer from the table API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Duplicates []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("table api: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Is classifies the answer by the server's error code, falling back to the
// status code for responses that carry none.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case "duplicate_name":
		return target == ErrDuplicateName
	case "invalid_input":
		return target == ErrInvalidInput
	case "not_found":
		return target == ErrNotFound
	case "store_unavailable":
		return target == ErrStoreUnavailable
	}
	switch {
	case e.StatusCode == http.StatusNotFound:
		return target == ErrNotFound
	case e.StatusCode == http.StatusBadRequest:
		return target == ErrInvalidInput
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return target == ErrStoreUnavailable
	}
	return false
}

// DuplicateNamesError rejects a bulk add before any request is sent.
type DuplicateNamesError struct {
	Names []string
}

func (e *DuplicateNamesError) Error() string {
	return "table names already exist: " + strings.Join(e.Names, ", ")
}

func (e *DuplicateNamesError) Is(target error) bool {
	return target == ErrDuplicateName
}

// BulkFailure is one failed request of a bulk operation.
type BulkFailure struct {
	Key string
	Err error
}

// BulkError lists the failed requests of a bulk operation. Requests not listed
// succeeded and are reflected in the Manager's state.
type BulkError struct {
	Op       string
	Total    int
	Failures []BulkFailure
}

func (e *BulkError) Error() string {
	keys := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		keys = append(keys, f.Key)
	}
	return fmt.Sprintf("bulk %s: %d of %d failed: %s", e.Op, len(e.Failures), e.Total, strings.Join(keys, ", "))
}

func (e *BulkError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
