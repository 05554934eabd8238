package xcap

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"
)

// VirtualWindow describes an in-memory window served by Virtual
type VirtualWindow struct {
	ID     uint32
	Title  string
	Width  int
	Height int
	Fill   color.RGBA
	// Image, when set, is drawn over Fill at the window origin
	Image image.Image

	// Delay blocks CaptureImage, standing in for a slow compositor read
	Delay time.Duration
	// Err, when set, is returned by CaptureImage
	Err error
	// Panic, when set, makes CaptureImage panic with this value
	Panic any
}

// Virtual is an in-memory Facility. It backs headless runs and tests.
type Virtual struct {
	mu       sync.RWMutex
	windows  []*VirtualWindow
	enumErr  error
	captures int
}

// NewVirtual creates a virtual facility holding the given windows
func NewVirtual(windows ...VirtualWindow) *Virtual {
	v := &Virtual{}
	for _, w := range windows {
		v.Add(w)
	}
	return v
}

// Name returns the backend name
func (v *Virtual) Name() string {
	return "virtual"
}

// Add registers another window
func (v *Virtual) Add(w VirtualWindow) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cp := w
	v.windows = append(v.windows, &cp)
}

// Remove drops the window with the given id
func (v *Virtual) Remove(id uint32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, w := range v.windows {
		if w.ID == id {
			v.windows = append(v.windows[:i], v.windows[i+1:]...)
			return
		}
	}
}

// FailEnumeration makes Windows return err until called again with nil
func (v *Virtual) FailEnumeration(err error) {
	v.mu.Lock()
	v.enumErr = err
	v.mu.Unlock()
}

// Captures returns how many pixel reads have completed
func (v *Virtual) Captures() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.captures
}

// Windows returns the registered windows in registration order
func (v *Virtual) Windows() ([]Window, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.enumErr != nil {
		return nil, v.enumErr
	}

	out := make([]Window, 0, len(v.windows))
	for _, w := range v.windows {
		out = append(out, &virtualHandle{facility: v, win: *w})
	}
	return out, nil
}

type virtualHandle struct {
	facility *Virtual
	win      VirtualWindow
}

func (h *virtualHandle) ID() (uint32, error) {
	return h.win.ID, nil
}

func (h *virtualHandle) Title() (string, error) {
	return h.win.Title, nil
}

func (h *virtualHandle) Size() (int, int) {
	return h.win.Width, h.win.Height
}

func (h *virtualHandle) CaptureImage() (*image.RGBA, error) {
	if h.win.Delay > 0 {
		time.Sleep(h.win.Delay)
	}
	if h.win.Panic != nil {
		panic(h.win.Panic)
	}
	if h.win.Err != nil {
		return nil, h.win.Err
	}
	if h.win.Width <= 0 || h.win.Height <= 0 {
		return nil, fmt.Errorf("window %d has empty geometry %dx%d", h.win.ID, h.win.Width, h.win.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, h.win.Width, h.win.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{h.win.Fill}, image.Point{}, draw.Src)
	if h.win.Image != nil {
		draw.Draw(img, img.Bounds(), h.win.Image, h.win.Image.Bounds().Min, draw.Over)
	}

	h.facility.mu.Lock()
	h.facility.captures++
	h.facility.mu.Unlock()

	return img, nil
}
