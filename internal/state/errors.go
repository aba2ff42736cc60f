package state

import "errors"

// #region errors

// Sentinel errors returned by Store operations. Callers match with
// errors.Is; operations wrap these with id/outcome context.
var (
	// ErrNotFound means the referenced state id is not in the store.
	ErrNotFound = errors.New("state not found")

	// ErrInvalidWeight means a negative weight was supplied during
	// creation or update.
	ErrInvalidWeight = errors.New("invalid weight")

	// ErrInvalidOutcome means a forced collapse value is not a member of
	// the current vector.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrNoCollapseRule means collapse was requested with a trigger for
	// which no rule exists and no forced value was given.
	ErrNoCollapseRule = errors.New("no collapse rule for trigger")

	// ErrInvalidCorrelation means an entanglement correlation is outside
	// the closed interval [-1, 1].
	ErrInvalidCorrelation = errors.New("correlation out of range")
)

// #endregion errors
