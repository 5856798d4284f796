package probe

import (
	"context"
	"fmt"
	"math"

	"github.com/chrisfit/storefront/internal/config"
	"github.com/chrisfit/storefront/internal/media/domain"
)

const probeFailedMessage = "could not read the video duration, choose another file"

// ValidateVideoDuration checks a selected file against maxSeconds. Non-video
// files always pass. A file whose duration cannot be read is rejected.
func ValidateVideoDuration(ctx context.Context, prober domain.Prober, file *domain.PendingFile, maxSeconds float64) domain.DurationResult {
	if file == nil || !domain.IsVideoUpload(file.ContentType) {
		return domain.DurationResult{Valid: true}
	}
	if prober == nil {
		return domain.DurationResult{Valid: false, Message: probeFailedMessage}
	}

	d, err := prober.Duration(ctx, file)
	if err != nil {
		return domain.DurationResult{Valid: false, Message: probeFailedMessage}
	}

	seconds := roundMillis(d.Seconds())
	if seconds > maxSeconds {
		return domain.DurationResult{
			Valid:    false,
			Duration: seconds,
			Message:  fmt.Sprintf("video is %.1f seconds long, the limit is %.0f seconds", seconds, maxSeconds),
		}
	}
	return domain.DurationResult{Valid: true, Duration: seconds}
}

func roundMillis(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}

// Selection is the verdict on one file picked for a slot.
type Selection struct {
	Type string `json:"type"`
	domain.DurationResult
}

// Validator applies the current media settings to a selected file.
type Validator struct {
	holder *config.MediaConfigHolder
	prober domain.Prober
}

// NewValidator builds the default probe chain from the current settings
// unless prober is set.
func NewValidator(holder *config.MediaConfigHolder) *Validator {
	if holder != nil {
		useFFProbeBin(holder.Get().FFProbePath)
	}
	return &Validator{holder: holder}
}

func NewValidatorWithProber(holder *config.MediaConfigHolder, prober domain.Prober) *Validator {
	return &Validator{holder: holder, prober: prober}
}

func (v *Validator) proberFor(cfg config.MediaConfig) domain.Prober {
	if v.prober != nil {
		return v.prober
	}
	chain := ChainProber{MP4Prober{MaxBufferBytes: cfg.MaxUploadBytes}}
	if cfg.FFProbePath != "" {
		useFFProbeBin(cfg.FFProbePath)
		chain = append(chain, FFProbeProber{BinPath: cfg.FFProbePath})
	}
	return chain
}

// Check returns a wrapped validation error when the file may not occupy a slot.
func (v *Validator) Check(ctx context.Context, file *domain.PendingFile) (Selection, error) {
	cfg := v.holder.Get()
	if file == nil {
		return Selection{}, domain.ErrUnsupportedMedia
	}
	if cfg.MaxUploadBytes > 0 && file.Size > cfg.MaxUploadBytes {
		return Selection{}, fmt.Errorf("%w: %s is larger than %d bytes", domain.ErrMediaTooLarge, file.Name, cfg.MaxUploadBytes)
	}

	if !domain.IsVideoUpload(file.ContentType) {
		if !cfg.AllowsImage(file.ContentType) {
			return Selection{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, file.ContentType)
		}
		return Selection{Type: domain.TypeImage, DurationResult: domain.DurationResult{Valid: true}}, nil
	}

	result := ValidateVideoDuration(ctx, v.proberFor(cfg), file, cfg.MaxVideoSeconds)
	sel := Selection{Type: domain.TypeVideo, DurationResult: result}
	if !result.Valid {
		return sel, fmt.Errorf("%w: %s", domain.ErrVideoTooLong, result.Message)
	}
	return sel, nil
}
