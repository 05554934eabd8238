package nativeshot

import (
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"

	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
	"github.com/bryanchriswhite/nativeshot/internal/xcap"
)

const component = "nativeshot"

// Stats counts coordinator outcomes since the plugin was built
type Stats struct {
	Dispatched    int64 `json:"dispatched"`
	Completed     int64 `json:"completed"`
	Failed        int64 `json:"failed"`
	MissingHandle int64 `json:"missing_handle"`
	Dropped       int64 `json:"dropped"`
}

type counters struct {
	dispatched    atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	missingHandle atomic.Int64
	dropped       atomic.Int64
}

// Plugin wires the capture systems into an App
type Plugin struct {
	queue      *resultQueue
	dispatcher *dispatcher
	counters   *counters
}

// NewPlugin creates a plugin capturing through f
func NewPlugin(f xcap.Facility) *Plugin {
	return &Plugin{
		queue:      newResultQueue(),
		dispatcher: &dispatcher{facility: f},
		counters:   &counters{},
	}
}

// Build installs the channel ends as resources and schedules dispatch
// before poll on every tick
func (p *Plugin) Build(app *engine.App) {
	componentsOf(app)
	engine.InsertResource(app, captureSender{queue: p.queue})
	engine.InsertResource(app, &captureReceiver{queue: p.queue})
	engine.InsertResource(app, p.dispatcher)
	engine.InsertResource(app, p.counters)

	app.AddSystem("nativeshot.dispatch", dispatchCaptures)
	app.AddSystem("nativeshot.poll", pollCaptures)
	app.OnClose(p.Close)
}

// Close stops accepting worker results. Workers still running finish and
// their messages are discarded.
func (p *Plugin) Close() error {
	p.queue.close()
	return nil
}

// Wait blocks until every worker started so far has finished
func (p *Plugin) Wait() {
	p.dispatcher.wait()
}

// Stats returns a snapshot of the outcome counters. Safe from any goroutine.
func (p *Plugin) Stats() Stats {
	return Stats{
		Dispatched:    p.counters.dispatched.Load(),
		Completed:     p.counters.completed.Load(),
		Failed:        p.counters.failed.Load(),
		MissingHandle: p.counters.missingHandle.Load(),
		Dropped:       p.counters.dropped.Load(),
	}
}

// dispatchCaptures moves requests added since the last tick to Capturing
// and starts a worker for each
func dispatchCaptures(app *engine.App) {
	c := componentsOf(app)
	tx, ok := engine.Resource[captureSender](app)
	if !ok {
		return
	}
	d, _ := engine.Resource[*dispatcher](app)
	stats, _ := engine.Resource[*counters](app)
	log := logger.WithComponent(component)

	for _, e := range c.requests.Added() {
		if c.capturing.Has(e) || c.captured.Has(e) {
			continue
		}
		req, _ := c.requests.Get(e)

		raw, ok := app.World.Handles.Get(req.Target)
		if !ok {
			log.Warn().
				Stringer("request", e).
				Stringer("target", req.Target).
				Msgf("%s Target entity %v has no raw window handle", logPrefix, req.Target)
			stats.missingHandle.Add(1)
			app.World.Despawn(e)
			continue
		}

		j := job{entity: e, handle: raw}
		if win, ok := app.World.Windows.Get(req.Target); ok {
			j.title, j.hasTitle = win.Title, true
		}

		c.capturing.Insert(e, Capturing{})
		stats.dispatched.Add(1)

		log.Debug().
			Stringer("request", e).
			Stringer("handle", raw).
			Str("title", j.title).
			Msg("Dispatching capture")

		d.spawn(j, tx)
	}
}

// pollCaptures routes every queued worker result to its request, fires the
// observer on success and retires the request either way
func pollCaptures(app *engine.App) {
	rx, ok := engine.Resource[*captureReceiver](app)
	if !ok {
		return
	}
	c := componentsOf(app)
	stats, _ := engine.Resource[*counters](app)
	log := logger.WithComponent(component)

	for _, msg := range rx.drain() {
		e := msg.entity
		if !c.requests.Has(e) {
			// request despawned by user code while the worker ran
			stats.dropped.Add(1)
			log.Debug().Stringer("request", e).Msg("Dropping result for retired request")
			continue
		}

		if msg.err != nil {
			log.Warn().
				Stringer("request", e).
				Msgf("%s Failed to capture window: %v", logPrefix, msg.err)
			stats.failed.Add(1)
			app.World.Despawn(e)
			continue
		}

		c.capturing.Remove(e)
		c.captured.Insert(e, Captured{})

		ev := NativeScreenshotCaptured{
			Entity: e,
			Width:  msg.image.Width,
			Height: msg.image.Height,
			RGBA:   msg.image.RGBA,
		}
		if obs, ok := c.observers.Get(e); ok {
			notify(app, obs, ev)
		}

		stats.completed.Add(1)
		app.World.Despawn(e)
	}
}

// notify runs user code; a panic there is logged and does not stop the
// request from being retired
func notify(app *engine.App, obs Observer, ev NativeScreenshotCaptured) {
	var pc panics.Catcher
	pc.Try(func() { obs(app, ev) })
	if r := pc.Recovered(); r != nil {
		logger.WithComponent(component).Error().
			Stringer("request", ev.Entity).
			Str("panic", r.String()).
			Msgf("%s Completion observer panicked", logPrefix)
	}
}
