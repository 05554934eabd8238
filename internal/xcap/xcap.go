// Package xcap enumerates visible top-level OS windows and reads their
// on-screen pixels.
package xcap

import (
	"errors"
	"image"
)

var (
	// ErrUnsupportedPlatform is returned by New where no backend exists
	ErrUnsupportedPlatform = errors.New("window capture is not supported on this platform")

	// ErrWindowGone is returned when a window disappeared between
	// enumeration and capture
	ErrWindowGone = errors.New("window no longer exists")
)

// Facility enumerates capturable windows
type Facility interface {
	// Windows returns all visible top-level windows. Order is whatever the
	// platform reports and may change between calls.
	Windows() ([]Window, error)

	// Name returns the backend name (e.g. "x11", "win32", "virtual")
	Name() string
}

// Window is one enumerated OS window
type Window interface {
	ID() (uint32, error)
	Title() (string, error)

	// CaptureImage reads the window's current pixels. It may block for tens
	// of milliseconds.
	CaptureImage() (*image.RGBA, error)
}

// Info is a plain snapshot of a window used for listings
type Info struct {
	ID     uint32 `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Width  int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height int    `json:"height,omitempty" yaml:"height,omitempty"`
}

// List snapshots every window of f, skipping those whose id cannot be read
func List(f Facility) ([]Info, error) {
	windows, err := f.Windows()
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(windows))
	for _, w := range windows {
		id, err := w.ID()
		if err != nil {
			continue
		}
		title, _ := w.Title()
		info := Info{ID: id, Title: title}
		if s, ok := w.(interface{ Size() (int, int) }); ok {
			info.Width, info.Height = s.Size()
		}
		infos = append(infos, info)
	}
	return infos, nil
}
