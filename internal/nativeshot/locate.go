package nativeshot

import (
	"fmt"

	"github.com/bryanchriswhite/nativeshot/internal/handle"
	"github.com/bryanchriswhite/nativeshot/internal/xcap"
)

// Image is a tightly packed RGBA pixel buffer
type Image struct {
	Width  uint32
	Height uint32
	RGBA   []byte
}

// locate finds the OS window behind h. The native id wins when the handle
// has one; otherwise, or when no window carries that id, the first window
// whose title equals title byte for byte is used. Several windows sharing a
// title resolve to whichever the facility lists first.
func locate(f xcap.Facility, h handle.RawHandle, title string, hasTitle bool) (xcap.Window, error) {
	windows, err := f.Windows()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumerate, err)
	}

	if target, ok := h.NativeID(); ok {
		for _, w := range windows {
			if id, err := w.ID(); err == nil && id == target {
				return w, nil
			}
		}
	}

	if hasTitle {
		for _, w := range windows {
			if t, err := w.Title(); err == nil && t == title {
				return w, nil
			}
		}
	}

	if hasTitle {
		return nil, fmt.Errorf("%w: handle %s, title %q", ErrNoMatchingWindow, h, title)
	}
	return nil, fmt.Errorf("%w: handle %s", ErrNoMatchingWindow, h)
}

// readPixels captures w and returns its pixels without cropping, scaling or
// colour conversion
func readPixels(w xcap.Window) (Image, error) {
	img, err := w.CaptureImage()
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	if img == nil {
		return Image{}, fmt.Errorf("%w: facility returned no image", ErrCaptureFailed)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return Image{}, fmt.Errorf("%w: empty image %dx%d", ErrCaptureFailed, width, height)
	}

	rowBytes := width * 4
	var pix []byte
	if img.Stride == rowBytes && img.PixOffset(bounds.Min.X, bounds.Min.Y) == 0 && len(img.Pix) >= rowBytes*height {
		pix = img.Pix[:rowBytes*height]
	} else {
		pix = make([]byte, rowBytes*height)
		for y := 0; y < height; y++ {
			src := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(pix[y*rowBytes:(y+1)*rowBytes], img.Pix[src:src+rowBytes])
		}
	}

	return Image{Width: uint32(width), Height: uint32(height), RGBA: pix}, nil
}
