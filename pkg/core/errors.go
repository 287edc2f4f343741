package core

import "errors"

// Reason is the diagnostic-reason taxonomy of the search contract. It is
// a string enum, not a Go error, because diagnostics describe per-worker or
// per-resolver outcomes that must serialize to JSON in SearchResponse and
// must never themselves abort a request.
type Reason string

const (
	ReasonCatalogFallback Reason = "CatalogFallback"
	ReasonFetchTimeout    Reason = "FetchTimeout"
	ReasonFetchNotFound   Reason = "FetchNotFound"
	ReasonFetchTransient  Reason = "FetchTransient"
	ReasonFetchTooLarge   Reason = "FetchTooLarge"
	ReasonArchiveCorrupt  Reason = "ArchiveCorrupt"
	ReasonBudgetExceeded  Reason = "BudgetExceeded"
	ReasonWorkerTimeout   Reason = "WorkerTimeout"
	ReasonCancelled       Reason = "Cancelled"
)

// Sentinel errors for caller-testable conditions.
var (
	// ErrInvalidRequest is returned by validation before any work is
	// scheduled. It is the one error kind that
	// short-circuits the orchestrator rather than becoming a diagnostic.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInternal is returned only when the orchestrator could produce no
	// response at all: every resolver and fallback failed simultaneously.
	ErrInternal = errors.New("internal error")

	// ErrCatalogUnavailable names the case where both the live catalog
	// query and the static fallback fail. No function in this module
	// returns it: catalog.Resolver.Resolve has no error result and reports
	// catalog trouble only through its failures list.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

// FetchError classifies an Archive Fetcher failure.
type FetchError struct {
	Reason Reason
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}

	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err with a fetch-stage Reason.
func NewFetchError(reason Reason, err error) *FetchError {
	return &FetchError{Reason: reason, Err: err}
}

// StageError classifies a failure at any non-fetch pipeline stage --
// archive reading, indexing, or querying -- with a Reason. A StageError
// never propagates as a Go error across a worker boundary; it is
// converted to a single diagnostic entry instead.
type StageError struct {
	Reason Reason
	Err    error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}

	return string(e.Reason) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with a non-fetch-stage Reason.
func NewStageError(reason Reason, err error) *StageError {
	return &StageError{Reason: reason, Err: err}
}
