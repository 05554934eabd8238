// Package handle models the opaque native window handle a host window
// carries. Only some variants expose a numeric window id that the capture
// facility can match on.
package handle

import "fmt"

// Kind tags which platform a RawHandle came from
type Kind int

const (
	Unknown Kind = iota
	Win32
	Xlib
	Xcb
	AppKit
)

func (k Kind) String() string {
	switch k {
	case Win32:
		return "win32"
	case Xlib:
		return "xlib"
	case Xcb:
		return "xcb"
	case AppKit:
		return "appkit"
	default:
		return "unknown"
	}
}

// RawHandle is a tagged native window handle. Only the field matching Kind
// is meaningful.
type RawHandle struct {
	Kind Kind

	HWND   uintptr // Win32
	Window uint64  // Xlib Window (XID)
	XcbID  uint32  // xcb_window_t
	NSView uintptr // AppKit view pointer
}

// FromHWND wraps a Win32 window handle
func FromHWND(hwnd uintptr) RawHandle {
	return RawHandle{Kind: Win32, HWND: hwnd}
}

// FromXlib wraps an Xlib Window
func FromXlib(window uint64) RawHandle {
	return RawHandle{Kind: Xlib, Window: window}
}

// FromXcb wraps an XCB window id
func FromXcb(window uint32) RawHandle {
	return RawHandle{Kind: Xcb, XcbID: window}
}

// FromNSView wraps an AppKit view pointer
func FromNSView(view uintptr) RawHandle {
	return RawHandle{Kind: AppKit, NSView: view}
}

// NativeID returns the numeric window id the capture facility enumerates
// windows by. AppKit handles point at a view, not a window, and resolving
// one to a CGWindowID needs calls this package does not make, so they
// report false and callers fall back to matching by title.
func (h RawHandle) NativeID() (uint32, bool) {
	switch h.Kind {
	case Win32:
		return uint32(h.HWND), true
	case Xlib:
		return uint32(h.Window), true
	case Xcb:
		return h.XcbID, true
	default:
		return 0, false
	}
}

func (h RawHandle) String() string {
	switch h.Kind {
	case Win32:
		return fmt.Sprintf("win32(hwnd=%#x)", h.HWND)
	case Xlib:
		return fmt.Sprintf("xlib(window=%#x)", h.Window)
	case Xcb:
		return fmt.Sprintf("xcb(window=%#x)", h.XcbID)
	case AppKit:
		return fmt.Sprintf("appkit(view=%#x)", h.NSView)
	default:
		return "unknown"
	}
}
