package scene

import (
	"errors"
	"fmt"
	"image"
)

// ErrWindowClosed is passed to App.Exit when the demo window is destroyed
var ErrWindowClosed = errors.New("demo window closed")

// rgbaToZPixmap packs img as BGRx (or BGR) rows padded to padBytes.
// Alpha is only kept when keepAlpha is set, i.e. for depth 32 visuals.
func rgbaToZPixmap(img *image.RGBA, bytesPerPixel, padBytes int, keepAlpha bool) ([]byte, error) {
	if bytesPerPixel != 3 && bytesPerPixel != 4 {
		return nil, fmt.Errorf("unsupported bytes per pixel: %d", bytesPerPixel)
	}
	if padBytes <= 0 {
		padBytes = 1
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	unpadded := w * bytesPerPixel
	stride := ((unpadded + padBytes - 1) / padBytes) * padBytes

	data := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w*4]
		dst := data[y*stride:]
		for x := 0; x < w; x++ {
			si, di := x*4, x*bytesPerPixel
			dst[di] = src[si+2]
			dst[di+1] = src[si+1]
			dst[di+2] = src[si]
			if bytesPerPixel == 4 && keepAlpha {
				dst[di+3] = src[si+3]
			}
		}
	}
	return data, nil
}

// putImageHeader is the fixed part of a PutImage request in bytes
const putImageHeader = 24

// band is a run of rows uploaded by one PutImage request
type band struct {
	y    int
	rows int
}

// imageBands splits height rows of stride bytes into runs whose PutImage
// request stays within maxRequestBytes. Without BIG-REQUESTS a longer
// request has its 16-bit length field truncated.
func imageBands(height, stride, maxRequestBytes int) ([]band, error) {
	if height <= 0 {
		return nil, nil
	}
	budget := maxRequestBytes - putImageHeader
	if stride <= 0 || budget < stride {
		return nil, fmt.Errorf("a %d byte row does not fit in a %d byte request", stride, maxRequestBytes)
	}

	perBand := budget / stride
	bands := make([]band, 0, (height+perBand-1)/perBand)
	for y := 0; y < height; y += perBand {
		bands = append(bands, band{y: y, rows: min(perBand, height-y)})
	}
	return bands, nil
}
