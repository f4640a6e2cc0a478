package detect

import "errors"

// Admission errors. They are returned synchronously by Manager.Start and
// never start a run.
var (
	// ErrBusy is returned when a detection run is already in progress.
	ErrBusy = errors.New("a detection run is already in progress")
	// ErrNoWork is returned when there are no unscored transactions.
	ErrNoWork = errors.New("no unprocessed transactions")
	// ErrModelNotTrained is returned when the requested model has not been loaded.
	ErrModelNotTrained = errors.New("model not trained")
)

// Fatal run errors. They end the run in the error state and are only
// visible through the progress snapshot.
var (
	ErrScoring     = errors.New("scoring failed")
	ErrPersistence = errors.New("persisting chunk failed")
)
