package domain

import (
	"context"
	"io"
	"time"
)

// Storage is the subset of object storage the upload path needs.
type Storage interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string, overwrite bool) error
	PublicURL(objectPath string) string
}

// Reconciler makes a product's stored media match the requested slot layout.
type Reconciler interface {
	Reconcile(ctx context.Context, req ReconcileRequest) (SlotArray[string], error)
}

// DurationResult is the outcome of a video length check. Duration is in seconds.
type DurationResult struct {
	Valid    bool    `json:"valid"`
	Duration float64 `json:"duration"`
	Message  string  `json:"message,omitempty"`
}

// Prober reads the playable duration of a media stream.
type Prober interface {
	Duration(ctx context.Context, file *PendingFile) (time.Duration, error)
}
