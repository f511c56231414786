// Package utils contains the error taxonomy and small numeric helpers shared by the
// estimation pipeline.
package utils

import (
	"github.com/pkg/errors"
)

// The estimation pipeline surfaces every failure through one of these sentinels. Callers test
// for them with errors.Is; the wrapping message carries the detail.
var (
	// ErrConfiguration is returned for conflicting or missing camera parameters.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidParameter is returned for out of range field of view, focal length or depth bounds.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrEmptyMask is returned when no food is present in the mask.
	ErrEmptyMask = errors.New("empty mask")
	// ErrInsufficientData is returned when there are too few usable points to fit a plane.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNumericalInstability is returned when the plane fit does not converge or is degenerate.
	ErrNumericalInstability = errors.New("numerical instability")
)

// NewConfigurationError is used when camera parameters conflict or are missing.
func NewConfigurationError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// NewInvalidParameterError is used when a numeric parameter is out of its allowed range.
func NewInvalidParameterError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidParameter, format, args...)
}

// NewEmptyMaskError is used when a mask has no foreground pixels left to measure.
func NewEmptyMaskError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrEmptyMask, format, args...)
}

// NewInsufficientDataError is used when there are not enough points for a fit.
func NewInsufficientDataError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInsufficientData, format, args...)
}

// NewNumericalInstabilityError is used when a numeric routine fails to converge.
func NewNumericalInstabilityError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNumericalInstability, format, args...)
}
