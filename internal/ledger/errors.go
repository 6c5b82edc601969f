package ledger

import (
	"errors"
	"fmt"
)

// DefaultFetchMessage is surfaced when the backend gives no usable message.
const DefaultFetchMessage = "Failed to fetch ledger data"

// EmptyExportMessage is the user facing text for an export of an empty view.
const EmptyExportMessage = "Table is empty"

// Sentinel kinds, matched with errors.Is against the typed errors below.
var (
	ErrValidation    = errors.New("ledger: validation failed")
	ErrInvalidPeriod = errors.New("ledger: invalid period")
	ErrFetch         = errors.New("ledger: fetch failed")
	ErrEmptyResult   = errors.New("ledger: no transactions for period")
	ErrEmptyExport   = errors.New("ledger: empty export")
)

// ValidationError blocks a submission before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// InvalidPeriodError reports a malformed period selector.
type InvalidPeriodError struct {
	Type   ReportType
	Value  string
	Reason string
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid %s period %q: %s", e.Type, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidPeriod) match.
func (e *InvalidPeriodError) Is(target error) bool { return target == ErrInvalidPeriod }

// FetchError wraps transport failures, non-2xx responses and malformed payloads.
type FetchError struct {
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return DefaultFetchMessage
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrFetch) match.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// EmptyResultError is a soft outcome: the period is valid but has no rows.
type EmptyResultError struct {
	CustomerID string
	Period     Period
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no transactions for customer %s in %s", e.CustomerID, e.Period.Label())
}

// Is lets errors.Is(err, ErrEmptyResult) match.
func (e *EmptyResultError) Is(target error) bool { return target == ErrEmptyResult }

// EmptyExportError is returned when an export is requested for an empty view.
type EmptyExportError struct{}

func (e *EmptyExportError) Error() string { return EmptyExportMessage }

// Is lets errors.Is(err, ErrEmptyExport) match.
func (e *EmptyExportError) Is(target error) bool { return target == ErrEmptyExport }

// IsSoft reports whether err should be shown inline rather than as an error.
func IsSoft(err error) bool {
	return errors.Is(err, ErrEmptyResult)
}

func validationErr(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

func fetchErr(msg string, cause error) error {
	return &FetchError{Message: msg, Err: cause}
}
