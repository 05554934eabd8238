package nativeshot

import (
	"github.com/bryanchriswhite/nativeshot/internal/engine"
)

// NativeScreenshot marks an entity as a capture request for Target
type NativeScreenshot struct {
	Target engine.Entity
}

// Window builds a request for the given window entity
func Window(target engine.Entity) NativeScreenshot {
	return NativeScreenshot{Target: target}
}

// Capturing is present while a worker is reading the window's pixels
type Capturing struct{}

// Captured is present while the completion observer runs
type Captured struct{}

// NativeScreenshotCaptured is delivered once to a request's observer.
// RGBA holds Width*Height*4 bytes, rows top to bottom.
type NativeScreenshotCaptured struct {
	Entity engine.Entity
	Width  uint32
	Height uint32
	RGBA   []byte
}

// Observer receives the completion event on the loop goroutine
type Observer func(app *engine.App, ev NativeScreenshotCaptured)

// State is the lifecycle position of a request
type State int

const (
	StateNew State = iota
	StateCapturing
	StateCaptured
	StateRetired
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateCapturing:
		return "capturing"
	case StateCaptured:
		return "captured"
	default:
		return "retired"
	}
}

type components struct {
	requests  *engine.Store[NativeScreenshot]
	capturing *engine.Store[Capturing]
	captured  *engine.Store[Captured]
	observers *engine.Store[Observer]
}

func componentsOf(app *engine.App) *components {
	if c, ok := engine.Resource[*components](app); ok {
		return c
	}
	c := &components{
		requests:  engine.NewStore[NativeScreenshot](app.World),
		capturing: engine.NewStore[Capturing](app.World),
		captured:  engine.NewStore[Captured](app.World),
		observers: engine.NewStore[Observer](app.World),
	}
	engine.InsertResource(app, c)
	return c
}

// Request spawns a capture request for target with obs attached. Must be
// called on the loop goroutine.
func Request(app *engine.App, target engine.Entity, obs Observer) engine.Entity {
	c := componentsOf(app)
	e := app.World.Spawn()
	if obs != nil {
		c.observers.Insert(e, obs)
	}
	c.requests.Insert(e, Window(target))
	return e
}

// Observe replaces the observer attached to request e
func Observe(app *engine.App, e engine.Entity, obs Observer) bool {
	return componentsOf(app).observers.Insert(e, obs)
}

// StateOf reports where request e is in its lifecycle. Unknown and
// despawned entities are Retired.
func StateOf(app *engine.App, e engine.Entity) State {
	c := componentsOf(app)
	switch {
	case !c.requests.Has(e):
		return StateRetired
	case c.captured.Has(e):
		return StateCaptured
	case c.capturing.Has(e):
		return StateCapturing
	default:
		return StateNew
	}
}

// Pending returns the requests that have not been retired
func Pending(app *engine.App) []engine.Entity {
	return componentsOf(app).requests.Entities()
}
