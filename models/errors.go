package models

import "errors"

var (
	// ErrImageUnavailable marks a per-item image that could not be fetched or decoded.
	// It degrades the tile and never aborts a render.
	ErrImageUnavailable = errors.New("image unavailable")

	// ErrValidationFailed marks caller input rejected before any rendering work
	ErrValidationFailed = errors.New("validation failed")

	// ErrDocumentAssemblyFailed marks a fatal whole-document failure
	ErrDocumentAssemblyFailed = errors.New("document assembly failed")

	// ErrDeliveryUnsupported marks a delivery tier that is not available
	ErrDeliveryUnsupported = errors.New("delivery unsupported")

	// ErrSaveCancelled marks a delivery tier the user aborted
	ErrSaveCancelled = errors.New("save cancelled")
)
