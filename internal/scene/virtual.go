package scene

import (
	"github.com/bryanchriswhite/nativeshot/internal/config"
	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/handle"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
	"github.com/bryanchriswhite/nativeshot/internal/xcap"
)

// VirtualWindowID is the id the virtual scene registers its window under
const VirtualWindowID uint32 = 0x4200001

// Virtual registers the demo window with an in-memory facility
type Virtual struct {
	facility *xcap.Virtual
	cfg      config.WindowConfig
	entity   engine.Entity
}

// NewVirtual creates a virtual scene backed by f
func NewVirtual(f *xcap.Virtual, cfg config.WindowConfig) *Virtual {
	return &Virtual{facility: f, cfg: cfg}
}

// Build adds the window to the facility and spawns its entity
func (v *Virtual) Build(app *engine.App) {
	v.facility.Add(xcap.VirtualWindow{
		ID:     VirtualWindowID,
		Title:  v.cfg.Title,
		Width:  v.cfg.Width,
		Height: v.cfg.Height,
		Fill:   Background,
		Image:  Render(v.cfg.Width, v.cfg.Height, v.cfg.Title),
	})

	v.entity = app.World.SpawnWindow(engine.Window{
		Title:  v.cfg.Title,
		Width:  v.cfg.Width,
		Height: v.cfg.Height,
	}, handle.FromXcb(VirtualWindowID))

	app.OnClose(func() error {
		v.facility.Remove(VirtualWindowID)
		return nil
	})

	logger.WithComponent("scene").Info().
		Str("title", v.cfg.Title).
		Int("width", v.cfg.Width).
		Int("height", v.cfg.Height).
		Stringer("entity", v.entity).
		Msg("Virtual window created")
}

// Entity returns the window entity spawned by Build
func (v *Virtual) Entity() engine.Entity {
	return v.entity
}
