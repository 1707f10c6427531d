package imgopt

import (
	apperrors "github.com/AnyUserName/imgopt/internal/errors"
)

// Sentinel errors. Use errors.Is to test for them.
var (
	ErrEmptyInput        = apperrors.ErrEmptyInput
	ErrTruncated         = apperrors.ErrTruncated
	ErrUnrecognized      = apperrors.ErrUnrecognized
	ErrCorrupt           = apperrors.ErrCorrupt
	ErrUnsupportedFormat = apperrors.ErrUnsupportedFormat
	ErrInvalidRequest    = apperrors.ErrInvalidRequest
	ErrInputTooLarge     = apperrors.ErrInputTooLarge
	ErrDestination       = apperrors.ErrDestination
	ErrNoOutput          = apperrors.ErrNoOutput
)

// IsDecodeError reports whether err came from decoding the input.
func IsDecodeError(err error) bool {
	return apperrors.IsCategory(err, apperrors.CategoryDecode)
}

// IsUnsupportedFormat reports whether err names a format that is unknown or
// not compiled into this build.
func IsUnsupportedFormat(err error) bool {
	return apperrors.IsCategory(err, apperrors.CategoryUnsupported)
}

// IsInvalidRequest reports whether err was caused by request validation.
func IsInvalidRequest(err error) bool {
	return apperrors.IsCategory(err, apperrors.CategoryInput)
}
