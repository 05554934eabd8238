//go:build linux || freebsd || openbsd || netbsd

package xcap

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
)

// New connects to the platform capture backend
func New() (Facility, error) {
	return NewX11()
}

// X11Facility enumerates and captures windows over an X11 connection
type X11Facility struct {
	conn             *xgb.Conn
	root             xproto.Window
	screen           *xproto.ScreenInfo
	compositeEnabled bool

	atomMu sync.Mutex
	atoms  map[string]xproto.Atom

	// serialises redirect / GetImage sequences
	captureMu sync.Mutex
}

// NewX11 connects to the X server named by $DISPLAY
func NewX11() (*X11Facility, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	f := &X11Facility{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
		atoms:  make(map[string]xproto.Atom),
	}

	log := logger.WithComponent("x11-capture")
	if err := composite.Init(conn); err != nil {
		log.Debug().Err(err).Msg("Composite extension not available, reading window drawables directly")
	} else {
		f.compositeEnabled = true
	}

	return f, nil
}

// Name returns the backend name
func (f *X11Facility) Name() string {
	return "x11"
}

// Close closes the X11 connection
func (f *X11Facility) Close() error {
	f.conn.Close()
	return nil
}

// Windows lists top-level windows via EWMH _NET_CLIENT_LIST, falling back
// to the viewable children of the root window when no window manager
// publishes a client list.
func (f *X11Facility) Windows() ([]Window, error) {
	log := logger.WithComponent("x11-capture")

	ids, err := f.clientList()
	if err != nil || len(ids) == 0 {
		if err != nil {
			log.Debug().Err(err).Msg("EWMH client list unavailable, falling back to QueryTree")
		}
		ids, err = f.rootChildren()
		if err != nil {
			return nil, fmt.Errorf("failed to query window tree: %w", err)
		}
	}

	windows := make([]Window, 0, len(ids))
	for _, id := range ids {
		windows = append(windows, &x11Window{facility: f, id: id})
	}
	log.Debug().Int("count", len(windows)).Msg("Enumerated windows")
	return windows, nil
}

func (f *X11Facility) clientList() ([]xproto.Window, error) {
	atom, err := f.atom("_NET_CLIENT_LIST")
	if err != nil {
		return nil, err
	}

	reply, err := xproto.GetProperty(
		f.conn,
		false,
		f.root,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST property: %w", err)
	}

	ids := make([]xproto.Window, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		ids = append(ids, xproto.Window(uint32(reply.Value[i])|
			uint32(reply.Value[i+1])<<8|
			uint32(reply.Value[i+2])<<16|
			uint32(reply.Value[i+3])<<24))
	}
	return ids, nil
}

func (f *X11Facility) rootChildren() ([]xproto.Window, error) {
	tree, err := xproto.QueryTree(f.conn, f.root).Reply()
	if err != nil {
		return nil, err
	}

	ids := make([]xproto.Window, 0, len(tree.Children))
	for _, child := range tree.Children {
		attrs, err := xproto.GetWindowAttributes(f.conn, child).Reply()
		if err != nil {
			continue
		}
		if attrs.Class != xproto.WindowClassInputOutput || attrs.MapState != xproto.MapStateViewable {
			continue
		}
		ids = append(ids, child)
	}
	return ids, nil
}

// atom interns and caches an atom by name
func (f *X11Facility) atom(name string) (xproto.Atom, error) {
	f.atomMu.Lock()
	defer f.atomMu.Unlock()

	if a, ok := f.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(f.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	f.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// property reads a window property as raw bytes
func (f *X11Facility) property(win xproto.Window, name string) ([]byte, error) {
	atom, err := f.atom(name)
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(
		f.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return nil, err
	}
	if reply.ValueLen == 0 {
		return nil, fmt.Errorf("property %s is empty", name)
	}
	return reply.Value, nil
}

type x11Window struct {
	facility *X11Facility
	id       xproto.Window
}

func (w *x11Window) ID() (uint32, error) {
	return uint32(w.id), nil
}

func (w *x11Window) Title() (string, error) {
	if v, err := w.facility.property(w.id, "_NET_WM_NAME"); err == nil {
		return string(v), nil
	}
	v, err := w.facility.property(w.id, "WM_NAME")
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (w *x11Window) Size() (int, int) {
	geom, err := xproto.GetGeometry(w.facility.conn, xproto.Drawable(w.id)).Reply()
	if err != nil {
		return 0, 0
	}
	return int(geom.Width), int(geom.Height)
}

func (w *x11Window) CaptureImage() (*image.RGBA, error) {
	f := w.facility
	f.captureMu.Lock()
	defer f.captureMu.Unlock()

	log := logger.WithComponent("x11-capture")

	geom, err := xproto.GetGeometry(f.conn, xproto.Drawable(w.id)).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: window %#x: %v", ErrWindowGone, uint32(w.id), err)
	}

	drawable := xproto.Drawable(w.id)
	if f.compositeEnabled {
		if pixmap, release, err := f.namePixmap(w.id); err != nil {
			log.Debug().
				Err(err).
				Uint32("window_id", uint32(w.id)).
				Msg("Composite pixmap unavailable, reading window directly")
		} else {
			defer release()
			drawable = xproto.Drawable(pixmap)
		}
	}

	reply, err := xproto.GetImage(
		f.conn,
		xproto.ImageFormatZPixmap,
		drawable,
		0, 0,
		geom.Width, geom.Height,
		0xffffffff,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	log.Debug().
		Uint32("window_id", uint32(w.id)).
		Uint16("width", geom.Width).
		Uint16("height", geom.Height).
		Int("bytes", len(reply.Data)).
		Msg("Captured window")

	return bgrxToRGBA(reply.Data, int(geom.Width), int(geom.Height), f.screen.RootDepth)
}

// namePixmap redirects the window offscreen and names its backing pixmap so
// obscured regions still read correctly
func (f *X11Facility) namePixmap(win xproto.Window) (xproto.Pixmap, func(), error) {
	if err := composite.RedirectWindowChecked(f.conn, win, composite.RedirectAutomatic).Check(); err != nil {
		return 0, nil, fmt.Errorf("redirect window: %w", err)
	}

	pixmap, err := xproto.NewPixmapId(f.conn)
	if err != nil {
		composite.UnredirectWindow(f.conn, win, composite.RedirectAutomatic)
		return 0, nil, fmt.Errorf("allocate pixmap id: %w", err)
	}

	if err := composite.NameWindowPixmapChecked(f.conn, win, pixmap).Check(); err != nil {
		composite.UnredirectWindow(f.conn, win, composite.RedirectAutomatic)
		return 0, nil, fmt.Errorf("name window pixmap: %w", err)
	}

	return pixmap, func() {
		xproto.FreePixmap(f.conn, pixmap)
		composite.UnredirectWindow(f.conn, win, composite.RedirectAutomatic)
	}, nil
}
