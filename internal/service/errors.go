package service

import "errors"

// Error taxonomy for the reconciliation and allocation flows. Recoverable
// conditions (sync, analysis) are surfaced passively and retried; validation
// errors are corrected at the input boundary and never sent upstream.
var (
	// ErrSyncInProgress means the ERP is busy building a snapshot. The
	// caller schedules a retry; this is not an error to the user.
	ErrSyncInProgress = errors.New("snapshot sync already in progress")

	// ErrSyncFailed means the snapshot fetch or parse failed. The last good
	// snapshot stays in place.
	ErrSyncFailed = errors.New("snapshot sync failed")

	// ErrNoSnapshot means no snapshot has been loaded yet.
	ErrNoSnapshot = errors.New("no snapshot available")

	// ErrAnalysisFailed means the recommendation service was unreachable or
	// returned a malformed shape. Distinct from ErrAnalysisEmpty: a failure
	// must never masquerade as an empty-but-successful result.
	ErrAnalysisFailed = errors.New("recommendation analysis failed")

	// ErrAnalysisEmpty means the recommendation service answered but had no
	// transferable candidates.
	ErrAnalysisEmpty = errors.New("no transfer recommendations")

	// ErrQuantityExceedsCap means a staged quantity exceeds the effective
	// source stock.
	ErrQuantityExceedsCap = errors.New("quantity exceeds effective source stock")

	// ErrNothingStaged means commit was requested with an empty staged set.
	ErrNothingStaged = errors.New("no staged transfers to commit")

	// ErrUnknownWarehouse means a warehouse ID does not exist in the
	// current snapshot.
	ErrUnknownWarehouse = errors.New("unknown warehouse")
)
