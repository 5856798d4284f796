package probe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abema/go-mp4"
	"github.com/chrisfit/storefront/internal/config"
	"github.com/chrisfit/storefront/internal/media/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProber struct {
	d   time.Duration
	err error
}

func (p fixedProber) Duration(context.Context, *domain.PendingFile) (time.Duration, error) {
	return p.d, p.err
}

func pending(name, contentType string, body []byte) *domain.PendingFile {
	return &domain.PendingFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		},
	}
}

func TestValidateVideoDuration(t *testing.T) {
	ctx := context.Background()
	clip := pending("clip.mp4", "video/mp4", []byte("x"))

	over := ValidateVideoDuration(ctx, fixedProber{d: 31 * time.Second}, clip, 30)
	assert.False(t, over.Valid)
	assert.Equal(t, 31.0, over.Duration)
	assert.NotEmpty(t, over.Message)

	exact := ValidateVideoDuration(ctx, fixedProber{d: 30 * time.Second}, clip, 30)
	assert.True(t, exact.Valid)
	assert.Equal(t, 30.0, exact.Duration)
	assert.Empty(t, exact.Message)

	failed := ValidateVideoDuration(ctx, fixedProber{err: errors.New("corrupt moov")}, clip, 30)
	assert.False(t, failed.Valid)
	assert.Equal(t, probeFailedMessage, failed.Message)
}

// buildMP4 writes a minimal ftyp + moov/mvhd file.
func buildMP4(t *testing.T, timescale, duration uint32) []byte {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "clip-*.mp4")
	require.NoError(t, err)
	defer f.Close()

	w := mp4.NewWriter(f)
	brand := [4]byte{'i', 's', 'o', 'm'}

	_, err = w.StartBox(&mp4.BoxInfo{Type: mp4.BoxTypeFtyp()})
	require.NoError(t, err)
	_, err = mp4.Marshal(w, &mp4.Ftyp{
		MajorBrand:       brand,
		MinorVersion:     0x200,
		CompatibleBrands: []mp4.CompatibleBrandElem{{CompatibleBrand: brand}},
	}, mp4.Context{})
	require.NoError(t, err)
	_, err = w.EndBox()
	require.NoError(t, err)

	_, err = w.StartBox(&mp4.BoxInfo{Type: mp4.BoxTypeMoov()})
	require.NoError(t, err)
	_, err = w.StartBox(&mp4.BoxInfo{Type: mp4.BoxTypeMvhd()})
	require.NoError(t, err)
	_, err = mp4.Marshal(w, &mp4.Mvhd{
		Timescale:   timescale,
		DurationV0:  duration,
		Rate:        0x10000,
		Volume:      0x100,
		NextTrackID: 1,
	}, mp4.Context{})
	require.NoError(t, err)
	_, err = w.EndBox()
	require.NoError(t, err)
	_, err = w.EndBox()
	require.NoError(t, err)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return data
}

func TestValidateVideoDurationDecodesMP4(t *testing.T) {
	ctx := context.Background()
	prober := ChainProber{MP4Prober{}}

	exact := ValidateVideoDuration(ctx, prober, pending("clip.mp4", "video/mp4", buildMP4(t, 1000, 30000)), 30)
	assert.True(t, exact.Valid)
	assert.Equal(t, 30.0, exact.Duration)
	assert.Empty(t, exact.Message)

	over := ValidateVideoDuration(ctx, prober, pending("clip.mp4", "video/mp4", buildMP4(t, 1000, 31000)), 30)
	assert.False(t, over.Valid)
	assert.Equal(t, 31.0, over.Duration)
	assert.NotEmpty(t, over.Message)

	mov := ValidateVideoDuration(ctx, prober, pending("clip.mov", "video/quicktime", buildMP4(t, 600, 7500)), 30)
	assert.True(t, mov.Valid)
	assert.Equal(t, 12.5, mov.Duration)
}

func TestUseFFProbeBinWritesOnce(t *testing.T) {
	var writes atomic.Int32
	prevSet, prevPath := setFFProbeBinPath, ffprobeBin.path
	setFFProbeBinPath = func(string) { writes.Add(1) }
	ffprobeBin.path = ""
	t.Cleanup(func() {
		setFFProbeBinPath = prevSet
		ffprobeBin.path = prevPath
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			useFFProbeBin("/opt/ffmpeg/bin/ffprobe")
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), writes.Load())

	useFFProbeBin("  ")
	assert.Equal(t, int32(1), writes.Load())

	useFFProbeBin("/usr/bin/ffprobe")
	assert.Equal(t, int32(2), writes.Load())
	assert.Equal(t, "/usr/bin/ffprobe", ffprobeBin.path)
}

func TestValidateVideoDurationSkipsImages(t *testing.T) {
	res := ValidateVideoDuration(context.Background(), nil, pending("pic.jpg", "image/jpeg", nil), 30)
	assert.Equal(t, domain.DurationResult{Valid: true}, res)
}

func TestChainProber(t *testing.T) {
	ctx := context.Background()
	file := pending("clip.webm", "video/webm", []byte("x"))

	chain := ChainProber{fixedProber{err: ErrUnsupportedContainer}, fixedProber{d: 12 * time.Second}}
	d, err := chain.Duration(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, d)

	_, err = ChainProber{fixedProber{err: ErrUnsupportedContainer}}.Duration(ctx, file)
	assert.ErrorIs(t, err, ErrUnsupportedContainer)

	_, err = ChainProber{}.Duration(ctx, file)
	assert.ErrorIs(t, err, ErrUnsupportedContainer)
}

func TestMP4ProberRejectsOtherContainers(t *testing.T) {
	_, err := MP4Prober{}.Duration(context.Background(), pending("clip.webm", "video/webm", []byte("x")))
	assert.ErrorIs(t, err, ErrUnsupportedContainer)
}

func TestMP4ProberFailsOnGarbage(t *testing.T) {
	_, err := MP4Prober{}.Duration(context.Background(), pending("clip.mp4", "video/mp4", []byte("not a movie")))
	assert.Error(t, err)
}

func TestValidatorCheck(t *testing.T) {
	holder := config.NewStaticMediaConfigHolder(config.MediaConfig{
		MaxVideoSeconds:   30,
		AllowedImageTypes: []string{"image/jpeg"},
		MaxUploadBytes:    1024,
	})
	ctx := context.Background()

	v := NewValidatorWithProber(holder, fixedProber{d: 45 * time.Second})

	sel, err := v.Check(ctx, pending("pic.jpg", "image/jpeg", []byte("jpg")))
	require.NoError(t, err)
	assert.Equal(t, domain.TypeImage, sel.Type)

	_, err = v.Check(ctx, pending("pic.bmp", "image/bmp", []byte("bmp")))
	assert.ErrorIs(t, err, domain.ErrUnsupportedMedia)

	_, err = v.Check(ctx, pending("big.jpg", "image/jpeg", make([]byte, 2048)))
	assert.ErrorIs(t, err, domain.ErrMediaTooLarge)

	sel, err = v.Check(ctx, pending("clip.mp4", "video/mp4", []byte("mp4")))
	assert.ErrorIs(t, err, domain.ErrVideoTooLong)
	assert.Equal(t, domain.TypeVideo, sel.Type)
	assert.Equal(t, 45.0, sel.Duration)
}
