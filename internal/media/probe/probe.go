// Package probe reads media metadata for upload validation.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/abema/go-mp4"
	"github.com/chrisfit/storefront/internal/media/domain"
	ffprobe "gopkg.in/vansante/go-ffprobe.v2"
)

var (
	ErrUnsupportedContainer = errors.New("unsupported container")
	ErrNoDuration           = errors.New("no duration in metadata")
)

var isoBMFFTypes = map[string]bool{
	"video/mp4":       true,
	"video/quicktime": true,
	"video/x-m4v":     true,
	"video/3gpp":      true,
}

// MP4Prober reads the movie header of ISO-BMFF files (mp4, mov, m4v).
type MP4Prober struct {
	// MaxBufferBytes bounds the copy made for non-seekable readers.
	MaxBufferBytes int64
}

func (p MP4Prober) Duration(ctx context.Context, file *domain.PendingFile) (time.Duration, error) {
	if file == nil || file.Open == nil {
		return 0, ErrNoDuration
	}
	if !isoBMFFTypes[baseContentType(file.ContentType)] {
		return 0, ErrUnsupportedContainer
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rc, err := file.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	rs, err := p.readSeeker(rc)
	if err != nil {
		return 0, err
	}

	info, err := mp4.Probe(rs)
	if err != nil {
		return 0, fmt.Errorf("mp4 probe: %w", err)
	}
	if info.Timescale == 0 || info.Duration == 0 {
		return 0, ErrNoDuration
	}
	seconds := float64(info.Duration) / float64(info.Timescale)
	return time.Duration(seconds * float64(time.Second)), nil
}

func (p MP4Prober) readSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	limit := p.MaxBufferBytes
	if limit <= 0 {
		limit = 50 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("video larger than %d bytes", limit)
	}
	return bytes.NewReader(data), nil
}

// ffprobeBin tracks the binary path held in the ffprobe package global.
// Probes hold the read lock so the path never changes under a running probe.
var ffprobeBin struct {
	sync.RWMutex
	path string
}

var setFFProbeBinPath = ffprobe.SetFFProbeBinPath

// useFFProbeBin writes the ffprobe package path only when it changes.
func useFFProbeBin(path string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	ffprobeBin.RLock()
	same := ffprobeBin.path == path
	ffprobeBin.RUnlock()
	if same {
		return
	}

	ffprobeBin.Lock()
	defer ffprobeBin.Unlock()
	if ffprobeBin.path != path {
		setFFProbeBinPath(path)
		ffprobeBin.path = path
	}
}

// FFProbeProber shells out to ffprobe and handles any container it knows.
type FFProbeProber struct {
	BinPath string
}

func (p FFProbeProber) Duration(ctx context.Context, file *domain.PendingFile) (time.Duration, error) {
	if file == nil || file.Open == nil {
		return 0, ErrNoDuration
	}
	useFFProbeBin(p.BinPath)

	rc, err := file.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	ffprobeBin.RLock()
	data, err := ffprobe.ProbeReader(ctx, rc)
	ffprobeBin.RUnlock()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	if data == nil || data.Format == nil || data.Format.DurationSeconds <= 0 {
		return 0, ErrNoDuration
	}
	return data.Format.Duration(), nil
}

// ChainProber returns the first successful probe result.
type ChainProber []domain.Prober

func (c ChainProber) Duration(ctx context.Context, file *domain.PendingFile) (time.Duration, error) {
	var errs []error
	for _, p := range c {
		d, err := p.Duration(ctx, file)
		if err == nil {
			return d, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return 0, ErrUnsupportedContainer
	}
	return 0, errors.Join(errs...)
}

func baseContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
