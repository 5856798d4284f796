package domain

import (
	"errors"
	"fmt"
)

var (
	ErrStorageNotConfigured = errors.New("storage_not_configured")
	ErrInvalidMediaCount    = errors.New("invalid_media_count")
	ErrInvalidProductID     = errors.New("invalid_product_id")
	ErrUnsupportedMedia     = errors.New("invalid_media_type")
	ErrMediaTooLarge        = errors.New("invalid_media_size")
	ErrVideoTooLong         = errors.New("invalid_video_duration")
)

// UploadError wraps the storage failure that aborted an upload batch.
type UploadError struct {
	Name     string
	Position int
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %q to slot %d failed: %v", e.Name, e.Position, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ReconcileError reports a failed media row replacement. Op is "delete" or "insert".
type ReconcileError struct {
	Op  string
	Err error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("media %s failed: %v", e.Op, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }
