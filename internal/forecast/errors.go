package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrSeriesInvalid is returned when the input series violates the
	// ordering invariants (non-ascending or duplicate dates). This is the
	// only fatal condition in the package: it fails fast before any model
	// is invoked.
	ErrSeriesInvalid = errors.New("invalid time series")

	// ErrInsufficientData is returned when usable observations fall below
	// the minimum training threshold.
	ErrInsufficientData = errors.New("insufficient data for training")

	// ErrNoModelsAvailable is returned by the orchestrator when every
	// selected variant failed, so callers can distinguish "everything
	// failed" from "nothing requested".
	ErrNoModelsAvailable = errors.New("no models produced a forecast")

	// ErrEnsembleUnavailable is returned when fewer than two forecasts are
	// available to combine, their lengths differ, or the supplied weight
	// vector is unusable.
	ErrEnsembleUnavailable = errors.New("ensemble unavailable")

	// ErrMetricsUnavailable is returned when the reference and candidate
	// sequences cannot be compared (empty or mismatched lengths).
	ErrMetricsUnavailable = errors.New("metrics unavailable")
)

// TrainingFailure records one variant's failed training run. Failures are
// always recovered locally by the orchestrator; the reason is a diagnostic
// string, never a stack trace.
type TrainingFailure struct {
	Kind   ModelKind `json:"modelKind"`
	Reason string    `json:"reason"`
}

func (f TrainingFailure) Error() string {
	return fmt.Sprintf("%s training failed: %s", f.Kind, f.Reason)
}
