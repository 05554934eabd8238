//go:build windows

package xcap

import (
	"errors"
	"fmt"
	"image"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var enumWindowsCallback = windows.NewCallback(collectVisibleWindow)

// New returns the GDI-backed facility
func New() (Facility, error) {
	return &Win32Facility{}, nil
}

// Win32Facility enumerates top-level windows with EnumWindows and reads
// their client area through GDI
type Win32Facility struct{}

// Name returns the backend name
func (f *Win32Facility) Name() string {
	return "win32"
}

// Windows returns the visible top-level windows in z-order
func (f *Win32Facility) Windows() ([]Window, error) {
	var hwnds []windows.HWND
	if err := windows.EnumWindows(enumWindowsCallback, unsafe.Pointer(&hwnds)); err != nil {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}

	out := make([]Window, 0, len(hwnds))
	for _, h := range hwnds {
		out = append(out, &win32Window{hwnd: h})
	}
	return out, nil
}

func collectVisibleWindow(hwnd windows.HWND, lparam uintptr) uintptr {
	if windows.IsWindowVisible(hwnd) {
		list := (*[]windows.HWND)(unsafe.Pointer(lparam))
		*list = append(*list, hwnd)
	}
	return 1
}

type win32Window struct {
	hwnd windows.HWND
}

func (w *win32Window) ID() (uint32, error) {
	return uint32(w.hwnd), nil
}

func (w *win32Window) Title() (string, error) {
	buf := make([]uint16, 512)
	n, err := windows.GetWindowText(w.hwnd, &buf[0], int32(len(buf)))
	if err != nil && !errors.Is(err, syscall.Errno(0)) {
		return "", err
	}
	return windows.UTF16ToString(buf[:n]), nil
}

func (w *win32Window) Size() (int, int) {
	var rect win.RECT
	if !win.GetClientRect(win.HWND(w.hwnd), &rect) {
		return 0, 0
	}
	return int(rect.Right - rect.Left), int(rect.Bottom - rect.Top)
}

func (w *win32Window) CaptureImage() (*image.RGBA, error) {
	hwnd := win.HWND(w.hwnd)

	var rect win.RECT
	if !win.GetClientRect(hwnd, &rect) {
		return nil, fmt.Errorf("%w: GetClientRect failed for %#x", ErrWindowGone, uintptr(w.hwnd))
	}
	width := int(rect.Right - rect.Left)
	height := int(rect.Bottom - rect.Top)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("window %#x has empty client area", uintptr(w.hwnd))
	}

	hdc := win.GetDC(hwnd)
	if hdc == 0 {
		return nil, errors.New("GetDC failed")
	}
	defer win.ReleaseDC(hwnd, hdc)

	memDC := win.CreateCompatibleDC(hdc)
	if memDC == 0 {
		return nil, errors.New("CreateCompatibleDC failed")
	}
	defer win.DeleteDC(memDC)

	bitmap := win.CreateCompatibleBitmap(hdc, int32(width), int32(height))
	if bitmap == 0 {
		return nil, errors.New("CreateCompatibleBitmap failed")
	}
	defer win.DeleteObject(win.HGDIOBJ(bitmap))

	var header win.BITMAPINFOHEADER
	header.BiSize = uint32(unsafe.Sizeof(header))
	header.BiPlanes = 1
	header.BiBitCount = 32
	header.BiWidth = int32(width)
	header.BiHeight = int32(-height) // top-down rows
	header.BiCompression = win.BI_RGB

	// GetDIBits is unreliable with Go-managed memory on some systems
	size := uintptr(width * height * 4)
	hmem := win.GlobalAlloc(win.GMEM_MOVEABLE, size)
	defer win.GlobalFree(hmem)
	memptr := win.GlobalLock(hmem)
	defer win.GlobalUnlock(hmem)

	old := win.SelectObject(memDC, win.HGDIOBJ(bitmap))
	if old == 0 {
		return nil, errors.New("SelectObject failed")
	}
	defer win.SelectObject(memDC, old)

	if !win.BitBlt(memDC, 0, 0, int32(width), int32(height), hdc, 0, 0, win.SRCCOPY) {
		return nil, errors.New("BitBlt failed")
	}
	if win.GetDIBits(hdc, bitmap, 0, uint32(height), (*uint8)(memptr), (*win.BITMAPINFO)(unsafe.Pointer(&header)), win.DIB_RGB_COLORS) == 0 {
		return nil, errors.New("GetDIBits failed")
	}

	return bgrxToRGBA(unsafe.Slice((*byte)(memptr), int(size)), width, height, 32)
}
