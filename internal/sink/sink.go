// Package sink turns completion events into image files
package sink

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
	"github.com/bryanchriswhite/nativeshot/internal/nativeshot"
)

// Format is an image encoding supported by the sinks
type Format string

const (
	PNG  Format = "png"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

var (
	// ErrUnknownFormat is returned for extensions or names with no encoder
	ErrUnknownFormat = errors.New("unknown image format")

	// ErrBadBuffer means the event's pixel buffer does not match its size
	ErrBadBuffer = errors.New("pixel buffer does not match dimensions")
)

// ParseFormat maps a name such as "png" or "tif" to a Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")) {
	case "png":
		return PNG, nil
	case "bmp":
		return BMP, nil
	case "tif", "tiff":
		return TIFF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// FormatFromPath picks the encoder from the file extension
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// ContentType returns the MIME type for f
func (f Format) ContentType() string {
	switch f {
	case BMP:
		return "image/bmp"
	case TIFF:
		return "image/tiff"
	default:
		return "image/png"
	}
}

// ToImage wraps the event's buffer as an image without copying
func ToImage(ev nativeshot.NativeScreenshotCaptured) (*image.RGBA, error) {
	w, h := int(ev.Width), int(ev.Height)
	if w <= 0 || h <= 0 || len(ev.RGBA) != w*h*4 {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrBadBuffer, w, h, len(ev.RGBA))
	}
	return &image.RGBA{
		Pix:    ev.RGBA,
		Stride: w * 4,
		Rect:   image.Rect(0, 0, w, h),
	}, nil
}

// Encode writes the event's pixels to out in the given format
func Encode(out io.Writer, ev nativeshot.NativeScreenshotCaptured, format Format) error {
	img, err := ToImage(ev)
	if err != nil {
		return err
	}

	switch format {
	case PNG:
		return png.Encode(out, img)
	case BMP:
		return bmp.Encode(out, img)
	case TIFF:
		return tiff.Encode(out, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Save encodes the event to path, choosing the format by extension
func Save(path string, ev nativeshot.NativeScreenshotCaptured) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := Encode(f, ev, format); err != nil {
		f.Close()
		return fmt.Errorf("encode %q: %w", path, err)
	}
	return f.Close()
}

// SaveToDisk returns an observer that writes each capture to path
func SaveToDisk(path string) nativeshot.Observer {
	return func(_ *engine.App, ev nativeshot.NativeScreenshotCaptured) {
		log := logger.WithComponent("sink")
		if err := Save(path, ev); err != nil {
			log.Error().
				Err(err).
				Str("path", path).
				Msgf("[nativeshot] Failed to save screenshot: %v", err)
			return
		}
		log.Info().
			Uint32("width", ev.Width).
			Uint32("height", ev.Height).
			Str("path", path).
			Msgf("[nativeshot] Saved %dx%d screenshot to %s", ev.Width, ev.Height, path)
	}
}
