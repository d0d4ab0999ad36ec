package models

import (
	"errors"
	"fmt"
)

// ============================================================
// Error taxonomy
// ============================================================

var (
	ErrNotFound            = errors.New("not found")
	ErrAssetLoadFailed     = errors.New("asset load failed")
	ErrUnsupportedPlatform = errors.New("3d rendering not supported on this platform")
	ErrInvariantViolation  = errors.New("invariant violation")
)

// AssetLoadError carries the asset reference and the underlying cause.
// errors.Is(err, ErrAssetLoadFailed) holds for every AssetLoadError.
type AssetLoadError struct {
	Ref   string
	Cause error
}

func (e *AssetLoadError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("asset %s: load failed", e.Ref)
	}
	return fmt.Sprintf("asset %s: load failed: %v", e.Ref, e.Cause)
}

func (e *AssetLoadError) Unwrap() error { return e.Cause }

func (e *AssetLoadError) Is(target error) bool { return target == ErrAssetLoadFailed }

// NewAssetLoadError wraps cause unless it already is an AssetLoadError.
func NewAssetLoadError(ref string, cause error) error {
	var existing *AssetLoadError
	if errors.As(cause, &existing) {
		return cause
	}
	return &AssetLoadError{Ref: ref, Cause: cause}
}
