package domain

import "fmt"

// PersistenceErrorKind classifies failures raised by the persistence layer.
type PersistenceErrorKind string

const (
	PersistenceUnavailable PersistenceErrorKind = "Unavailable"
	PersistenceConflict    PersistenceErrorKind = "Conflict"
	PersistenceIntegrity   PersistenceErrorKind = "Integrity"
)

// PersistenceError is the one error type every persistence accessor returns.
type PersistenceError struct {
	Kind PersistenceErrorKind
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persistence: %s (%s): %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("persistence: %s (%s)", e.Op, e.Kind)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err as a PersistenceError of the given kind.
func NewPersistenceError(op string, kind PersistenceErrorKind, err error) *PersistenceError {
	return &PersistenceError{Op: op, Kind: kind, Err: err}
}

// FetchErrorKind classifies failures raised by a fetcher's fetch() call.
type FetchErrorKind string

const (
	FetchTransient FetchErrorKind = "Transient"
	FetchNotFound  FetchErrorKind = "NotFound"
	FetchParse     FetchErrorKind = "Parse"
	FetchBlocked   FetchErrorKind = "Blocked"
	FetchAuth      FetchErrorKind = "Auth"
)

// FetchError is the one error type every fetcher implementation returns.
type FetchError struct {
	Kind    FetchErrorKind
	Site    string
	Ticker  string
	Err     error
	Excerpt string // offending data excerpt, populated for Parse errors
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s/%s (%s): %v", e.Site, e.Ticker, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s/%s (%s)", e.Site, e.Ticker, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the framework should retry this error: only
// Transient errors are retried.
func (e *FetchError) Retryable() bool {
	return e.Kind == FetchTransient
}

// NewFetchError wraps err as a FetchError of the given kind.
func NewFetchError(site, ticker string, kind FetchErrorKind, err error) *FetchError {
	return &FetchError{Site: site, Ticker: ticker, Kind: kind, Err: err}
}
