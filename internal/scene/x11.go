//go:build linux || freebsd || openbsd || netbsd

package scene

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/nativeshot/internal/config"
	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/handle"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
)

// X11 is the demo window on a real X server
type X11 struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	window xproto.Window
	gc     xproto.Gcontext
	cfg    config.WindowConfig
	frame  *image.RGBA
	entity engine.Entity
	closed bool

	spaceKey xproto.Keycode
	shots    screenshotKey
}

// spaceKeysym is the X11 keysym of the space bar
const spaceKeysym xproto.Keysym = 0x0020

// NewX11 connects to $DISPLAY, then creates and maps the demo window
func NewX11(cfg config.WindowConfig) (*X11, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	s := &X11{
		conn:   conn,
		screen: xproto.Setup(conn).DefaultScreen(conn),
		cfg:    cfg,
		frame:  Render(cfg.Width, cfg.Height, cfg.Title),
		shots:  screenshotKey{dir: "."},
	}
	if err := s.open(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *X11) open() error {
	log := logger.WithComponent("scene")

	windowID, err := xproto.NewWindowId(s.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	s.window = windowID

	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		uint32(Background.R)<<16 | uint32(Background.G)<<8 | uint32(Background.B),
		xproto.EventMaskExposure | xproto.EventMaskStructureNotify | xproto.EventMaskKeyPress,
	}

	err = xproto.CreateWindowChecked(
		s.conn,
		s.screen.RootDepth,
		s.window,
		s.screen.Root,
		0, 0,
		uint16(s.cfg.Width), uint16(s.cfg.Height),
		0,
		xproto.WindowClassInputOutput,
		s.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	if err := s.setTitle(s.cfg.Title); err != nil {
		log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := s.setClass("nativeshot", "NativeShot"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window class")
	}

	if err := xproto.MapWindowChecked(s.conn, s.window).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(s.conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	s.gc = gc
	err = xproto.CreateGCChecked(
		s.conn,
		s.gc,
		xproto.Drawable(s.window),
		xproto.GcForeground|xproto.GcBackground,
		[]uint32{0xffffffff, 0x00000000},
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}
	s.conn.Sync()

	if s.spaceKey, err = s.keycodeFor(spaceKeysym); err != nil {
		log.Warn().Err(err).Msg("Space key not mapped, screenshots on key press disabled")
	}

	log.Info().
		Int("width", s.cfg.Width).
		Int("height", s.cfg.Height).
		Uint32("window_id", uint32(s.window)).
		Msg("Demo window created")

	return s.paint()
}

// Build spawns the window entity and pumps X events every tick
func (s *X11) Build(app *engine.App) {
	s.entity = app.World.SpawnWindow(engine.Window{
		Title:  s.cfg.Title,
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
	}, handle.FromXcb(uint32(s.window)))

	app.AddSystem("scene.events", s.pumpEvents)
	app.OnClose(s.Close)
}

// Entity returns the window entity spawned by Build
func (s *X11) Entity() engine.Entity {
	return s.entity
}

// WindowID returns the X11 window id
func (s *X11) WindowID() uint32 {
	return uint32(s.window)
}

// keycodeFor finds the first keycode whose mapping contains sym
func (s *X11) keycodeFor(sym xproto.Keysym) (xproto.Keycode, error) {
	setup := xproto.Setup(s.conn)
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)
	reply, err := xproto.GetKeyboardMapping(s.conn, setup.MinKeycode, count).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to get keyboard mapping: %w", err)
	}

	per := int(reply.KeysymsPerKeycode)
	for i, ks := range reply.Keysyms {
		if ks == sym && per > 0 {
			return setup.MinKeycode + xproto.Keycode(i/per), nil
		}
	}
	return 0, fmt.Errorf("keysym %#x not mapped", uint32(sym))
}

// pumpEvents repaints on expose, saves a screenshot when Space is pressed
// and exits the app when the window goes away
func (s *X11) pumpEvents(app *engine.App) {
	log := logger.WithComponent("scene")
	for {
		ev, xerr := s.conn.PollForEvent()
		if ev == nil && xerr == nil {
			return
		}
		if xerr != nil {
			log.Debug().Str("error", xerr.Error()).Msg("X error")
			continue
		}

		switch e := ev.(type) {
		case xproto.ExposeEvent:
			if e.Count == 0 {
				if err := s.paint(); err != nil {
					log.Error().Err(err).Msg("Failed to repaint window")
				}
			}
		case xproto.KeyPressEvent:
			if s.spaceKey != 0 && e.Detail == s.spaceKey {
				s.shots.press(app, s.entity)
			}
		case xproto.DestroyNotifyEvent:
			if e.Window == s.window {
				s.closed = true
				app.World.Despawn(s.entity)
				app.Exit(ErrWindowClosed)
				return
			}
		}
	}
}

// Close destroys the window and drops the connection
func (s *X11) Close() error {
	if !s.closed {
		xproto.FreeGC(s.conn, s.gc)
		xproto.DestroyWindow(s.conn, s.window)
		s.conn.Sync()
		s.closed = true
	}
	s.conn.Close()
	logger.WithComponent("scene").Info().Msg("Demo window closed")
	return nil
}

// paint uploads the rendered frame, one PutImage per band of rows that
// fits the server's maximum request length
func (s *X11) paint() error {
	data, err := s.encodeFrame()
	if err != nil {
		return err
	}

	height := s.cfg.Height
	stride := len(data) / height
	maxRequest := int(xproto.Setup(s.conn).MaximumRequestLength) * 4
	bands, err := imageBands(height, stride, maxRequest)
	if err != nil {
		return err
	}

	for _, b := range bands {
		err = xproto.PutImageChecked(
			s.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(s.window),
			s.gc,
			uint16(s.cfg.Width),
			uint16(b.rows),
			0, int16(b.y),
			0,
			s.screen.RootDepth,
			data[b.y*stride:(b.y+b.rows)*stride],
		).Check()
		if err != nil {
			return fmt.Errorf("failed to put image rows %d-%d: %w", b.y, b.y+b.rows-1, err)
		}
	}
	s.conn.Sync()
	return nil
}

// encodeFrame converts the RGBA frame into the server's ZPixmap layout
func (s *X11) encodeFrame() ([]byte, error) {
	depth := s.screen.RootDepth

	var bitsPerPixel, scanlinePad uint8
	for _, format := range xproto.Setup(s.conn).PixmapFormats {
		if format.Depth == depth {
			bitsPerPixel = format.BitsPerPixel
			scanlinePad = format.ScanlinePad
			break
		}
	}
	if bitsPerPixel == 0 {
		return nil, fmt.Errorf("no format found for depth %d", depth)
	}

	return rgbaToZPixmap(s.frame, int(bitsPerPixel)/8, int(scanlinePad)/8, depth == 32)
}
