package xcap

import (
	"fmt"
	"image"
)

// bgrxToRGBA converts a 32bpp ZPixmap (B,G,R,x per pixel, rows packed) to
// RGBA. Alpha is forced opaque since depth-24 visuals leave the fourth byte
// undefined.
func bgrxToRGBA(data []byte, width, height int, depth byte) (*image.RGBA, error) {
	if depth != 24 && depth != 32 {
		return nil, fmt.Errorf("unsupported color depth %d", depth)
	}
	if want := width * height * 4; len(data) < want {
		return nil, fmt.Errorf("short image data: got %d bytes, want %d", len(data), want)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height*4; i += 4 {
		img.Pix[i] = data[i+2]
		img.Pix[i+1] = data[i+1]
		img.Pix[i+2] = data[i]
		img.Pix[i+3] = 255
	}
	return img, nil
}
