package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"
	"github.com/gen2brain/webp"
	"github.com/nghiemng0310/nail/internal/config"
	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/wb-go/wbf/zlog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

const (
	ContentTypeWebP = "image/webp"
	ExtWebP         = "webp"

	minCompressQuality = 40
	compressStep       = 10
)

// Codec turns arbitrary user uploads into bounded, opaque WebP blobs.
type Codec struct {
	maxSourceBytes       int64
	compressMaxDimension int
	observe              func(d time.Duration)
	heicDecoder          func(data []byte) (image.Image, error)
}

func New(cfg *config.ProcessingConfig) *Codec {
	c := &Codec{
		maxSourceBytes:       int64(cfg.MaxSourceMB * 1024 * 1024),
		compressMaxDimension: cfg.CompressMaxDimension,
		heicDecoder:          decodeHEIC,
	}
	if c.compressMaxDimension <= 0 {
		c.compressMaxDimension = 1920
	}
	zlog.Logger.Info().
		Int64("max_source_bytes", c.maxSourceBytes).
		Int("compress_max_dimension", c.compressMaxDimension).
		Msg("image codec initialized")
	return c
}

// WithObserver registers a callback receiving the duration of every Normalize call.
func (c *Codec) WithObserver(fn func(d time.Duration)) *Codec {
	c.observe = fn
	return c
}

// Normalize decodes the upload, fits it into a maxDimension square without
// upscaling, flattens transparency onto white and encodes WebP.
func (c *Codec) Normalize(r io.Reader, filename string, maxDimension int, quality float64) (*domain.Blob, error) {
	if maxDimension <= 0 {
		return nil, domain.Validationf("max dimension must be positive, got %d", maxDimension)
	}
	if quality <= 0 || quality > 1 || math.IsNaN(quality) {
		return nil, domain.Validationf("quality must be in (0, 1], got %v", quality)
	}
	if r == nil {
		return nil, domain.Validationf("image file is required")
	}

	start := time.Now()
	if c.observe != nil {
		defer func() { c.observe(time.Since(start)) }()
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read source: %v", domain.ErrDecode, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrDecode)
	}

	img, err := c.load(data, filename)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("filename", filename).Msg("failed to decode image")
		return nil, err
	}

	if img.Bounds().Dx() == 0 || img.Bounds().Dy() == 0 {
		return nil, fmt.Errorf("%w: decoded image is empty", domain.ErrDecode)
	}

	fitted := imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	flat := flatten(fitted)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, flat, webp.Options{Quality: int(math.Round(quality * 100))}); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to encode webp")
		return nil, fmt.Errorf("%w: encode webp: %v", domain.ErrDecode, err)
	}

	blob := &domain.Blob{
		Data:        buf.Bytes(),
		ContentType: ContentTypeWebP,
		Ext:         ExtWebP,
		Width:       flat.Bounds().Dx(),
		Height:      flat.Bounds().Dy(),
	}

	zlog.Logger.Info().
		Str("filename", filename).
		Int("source_bytes", len(data)).
		Int("source_width", img.Bounds().Dx()).
		Int("source_height", img.Bounds().Dy()).
		Int("width", blob.Width).
		Int("height", blob.Height).
		Int64("bytes", blob.Size()).
		Msg("image normalized")

	return blob, nil
}

// load decodes the source. HEIC is convert-only and never goes through the
// compression pass; other formats over the source budget do.
func (c *Codec) load(data []byte, filename string) (image.Image, error) {
	if IsHEIC(data, filename) {
		return c.heicDecoder(data)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	if !c.overBudget(len(data)) {
		return img, nil
	}
	return c.compress(img, len(data))
}

func (c *Codec) overBudget(sourceBytes int) bool {
	return c.maxSourceBytes > 0 && int64(sourceBytes) > c.maxSourceBytes
}

// compress shrinks an oversized source before the final pass. It keeps
// stepping the JPEG quality down until the budget is met or the floor is hit.
func (c *Codec) compress(img image.Image, sourceBytes int) (image.Image, error) {
	resized := imaging.Fit(img, c.compressMaxDimension, c.compressMaxDimension, imaging.Lanczos)
	opaque := flatten(resized)

	var buf bytes.Buffer
	quality := 90
	for {
		buf.Reset()
		if err := imaging.Encode(&buf, opaque, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("%w: compress: %v", domain.ErrDecode, err)
		}
		if int64(buf.Len()) <= c.maxSourceBytes || quality <= minCompressQuality {
			break
		}
		quality -= compressStep
	}

	out, err := imaging.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("%w: compress: %v", domain.ErrDecode, err)
	}

	zlog.Logger.Info().
		Int("source_bytes", sourceBytes).
		Int("compressed_bytes", buf.Len()).
		Int("jpeg_quality", quality).
		Msg("oversized source compressed")

	return out, nil
}

func decodeHEIC(data []byte) (image.Image, error) {
	img, err := heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: heic: %v", domain.ErrDecode, err)
	}
	return img, nil
}

// flatten composites the image over an opaque white background.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
