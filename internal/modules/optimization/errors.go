package optimization

import (
	"errors"
	"fmt"
)

// ErrViewsNotSet is returned when the Black-Litterman blend is requested
// without any views. The blender never silently falls back to the prior.
var ErrViewsNotSet = errors.New("views (P and Q) must be set before blending")

// ErrPickingMatrixNotSet is returned when omega estimation is requested
// before the picking matrix exists.
var ErrPickingMatrixNotSet = errors.New("picking matrix P must be set before estimating omega")

// UnknownAssetError indicates a view or constraint references a ticker
// outside the instrument set.
type UnknownAssetError struct {
	Asset string
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("unknown asset %q: not in the instrument set", e.Asset)
}

// ConstraintRangeError indicates a maximum-weight constraint outside
// the [0, 1] range.
type ConstraintRangeError struct {
	Asset string
	Cap   float64
}

func (e *ConstraintRangeError) Error() string {
	return fmt.Sprintf("constraint for %q is %v, must be in [0, 1]", e.Asset, e.Cap)
}

// SingularCovarianceError indicates the covariance matrix (or a derived
// matrix) could not be inverted, usually because there are too few
// observations relative to the number of instruments.
type SingularCovarianceError struct {
	Err error
}

func (e *SingularCovarianceError) Error() string {
	return fmt.Sprintf("covariance matrix is singular or ill-conditioned: %v", e.Err)
}

func (e *SingularCovarianceError) Unwrap() error {
	return e.Err
}
