// Package scene opens the demo window whose pixels the capture commands
// read back, either as a real X11 window or as an in-memory virtual one.
package scene

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Palette used by Render
var (
	Background = color.RGBA{R: 38, G: 38, B: 51, A: 255}
	Accent     = color.RGBA{R: 230, G: 126, B: 34, A: 255}
	Secondary  = color.RGBA{R: 52, G: 152, B: 219, A: 255}
	TextColor  = color.RGBA{R: 236, G: 240, B: 241, A: 255}
)

const glyphHeight = 13

// Render draws the demo frame: a filled background, a rectangle, a disc
// and a caption centred near the top edge
func Render(width, height int, caption string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{Background}, image.Point{}, draw.Src)
	if width <= 0 || height <= 0 {
		return img
	}

	rect := image.Rect(width/8, height/3, width/8+width/4, height/3+height/3)
	draw.Draw(img, rect, &image.Uniform{Secondary}, image.Point{}, draw.Src)

	radius := min(width, height) / 6
	fillCircle(img, width*5/8+radius/2, height/2, radius, Accent)

	drawCaption(img, caption)
	return img
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			if x*x+y*y <= r*r {
				img.SetRGBA(cx+x, cy+y, c)
			}
		}
	}
}

// drawCaption renders text with the 7x13 bitmap face, horizontally centred
func drawCaption(img *image.RGBA, text string) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(TextColor),
		Face: face,
	}
	textWidthPx := d.MeasureString(text).Round()

	x := (img.Bounds().Dx() - textWidthPx) / 2
	if x < 0 {
		x = 0
	}
	y := img.Bounds().Dy()/8 + glyphHeight
	d.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	d.DrawString(text)
}
