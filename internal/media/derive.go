package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"time"

	"photovault/internal/logging"
	"photovault/internal/mediatypes"
	"photovault/internal/metrics"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// ThumbMaxEdge bounds both thumbnail dimensions.
	ThumbMaxEdge = 100
	// ThumbQuality is the JPEG encode quality for thumbnails.
	ThumbQuality = 70
)

// Sentinel errors for thumbnail derivation. Both are caller-visible
// "no thumbnail available" signals, never fatal.
var (
	// ErrUnsupportedFormat indicates the payload is not a format we can decode.
	ErrUnsupportedFormat = errors.New("unsupported media format")
	// ErrCorruptInput indicates the payload claims a known format but fails
	// structural verification.
	ErrCorruptInput = errors.New("corrupt media payload")
)

// Derive produces a JPEG thumbnail from raw media bytes. The longer edge
// is at most ThumbMaxEdge pixels, aspect ratio is preserved, and the
// output carries no alpha channel. Kind is established at listing time
// from the filename and is never re-derived here.
func Derive(data []byte, kind mediatypes.Kind) ([]byte, error) {
	start := time.Now()

	var img image.Image
	var err error

	switch kind {
	case mediatypes.KindImage:
		img, err = decodeStill(data)
	case mediatypes.KindVideo:
		img, err = extractVideoFrame(data)
	default:
		err = fmt.Errorf("%w: kind %q", ErrUnsupportedFormat, kind)
	}

	if err != nil {
		metrics.ThumbnailsGenerated.WithLabelValues(string(kind), "error").Inc()
		return nil, err
	}

	out, err := encodeThumbnail(img)
	if err != nil {
		metrics.ThumbnailsGenerated.WithLabelValues(string(kind), "error").Inc()
		return nil, err
	}

	metrics.ThumbnailsGenerated.WithLabelValues(string(kind), "success").Inc()
	metrics.ThumbnailDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	return out, nil
}

// decodeStill decodes a raster image and verifies it structurally. An
// unknown format and a corrupt payload are reported distinctly.
func decodeStill(data []byte) (image.Image, error) {
	if vipsEnabled() {
		if img, err := decodeWithVips(data); err == nil {
			return img, nil
		}
		// Fall through to the pure-Go decoders; vips rejects some
		// payloads the stdlib handles (and vice versa).
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptInput, err)
	}

	logging.Debug("decoded %s image (%dx%d)", format, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}

// encodeThumbnail resizes and JPEG-encodes a decoded frame. Transparency
// is flattened onto white; grayscale sources stay single-channel.
func encodeThumbnail(src image.Image) ([]byte, error) {
	_, wasGray := src.(*image.Gray)

	thumb := imaging.Fit(src, ThumbMaxEdge, ThumbMaxEdge, imaging.Lanczos)

	var flat image.Image
	if wasGray {
		gray := image.NewGray(thumb.Bounds())
		draw.Draw(gray, gray.Bounds(), thumb, thumb.Bounds().Min, draw.Src)
		flat = gray
	} else {
		rgba := image.NewRGBA(thumb.Bounds())
		draw.Draw(rgba, rgba.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(rgba, rgba.Bounds(), thumb, thumb.Bounds().Min, draw.Over)
		flat = rgba
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: ThumbQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
