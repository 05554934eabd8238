package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/bryanchriswhite/nativeshot/internal/logger"
)

// System runs once per tick on the loop goroutine
type System func(*App)

// Plugin installs systems and resources into an App
type Plugin interface {
	Build(app *App)
}

type namedSystem struct {
	name string
	run  System
}

// App drives a World one tick at a time
type App struct {
	World *World

	systems   []namedSystem
	resources map[reflect.Type]any
	closers   []func() error
	tick      uint64

	exiting bool
	exitErr error

	// commands queued from other goroutines
	cmdMu    sync.Mutex
	commands []func(*App)
}

// NewApp creates an app with an empty world
func NewApp() *App {
	return &App{
		World:     NewWorld(),
		resources: make(map[reflect.Type]any),
	}
}

// AddPlugin builds p into the app
func (a *App) AddPlugin(p Plugin) *App {
	p.Build(a)
	return a
}

// AddSystem appends a system to the per-tick schedule. Systems run in the
// order they were added.
func (a *App) AddSystem(name string, s System) *App {
	a.systems = append(a.systems, namedSystem{name: name, run: s})
	return a
}

// OnClose registers a function run by Close in reverse order
func (a *App) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Send schedules fn to run on the loop goroutine at the start of the next
// tick. Safe to call from any goroutine.
func (a *App) Send(fn func(*App)) {
	a.cmdMu.Lock()
	a.commands = append(a.commands, fn)
	a.cmdMu.Unlock()
}

// Tick drains queued commands and runs every system once
func (a *App) Tick() {
	a.cmdMu.Lock()
	cmds := a.commands
	a.commands = nil
	a.cmdMu.Unlock()

	for _, fn := range cmds {
		fn(a)
	}

	for _, s := range a.systems {
		s.run(a)
	}
	a.tick++
}

// Ticks returns how many ticks have completed
func (a *App) Ticks() uint64 {
	return a.tick
}

// Exit asks Run to stop after the current tick. A nil err is a clean exit.
func (a *App) Exit(err error) {
	if a.exiting {
		return
	}
	a.exiting = true
	a.exitErr = err
}

// Exited reports whether Exit was called and with which error
func (a *App) Exited() (bool, error) {
	return a.exiting, a.exitErr
}

// Run ticks the app every interval until the context is done or a system
// calls Exit. A clean exit returns nil.
func (a *App) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", interval)
	}

	log := logger.WithComponent("engine")
	log.Debug().Dur("interval", interval).Msg("Loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.Tick()
			if a.exiting {
				log.Debug().Uint64("ticks", a.tick).Err(a.exitErr).Msg("Loop exiting")
				return a.exitErr
			}
		}
	}
}

// Close runs registered closers and joins their errors
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// InsertResource stores a singleton value of type T on the app
func InsertResource[T any](a *App, v T) {
	a.resources[reflect.TypeOf((*T)(nil)).Elem()] = v
}

// Resource fetches the singleton of type T
func Resource[T any](a *App) (T, bool) {
	v, ok := a.resources[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}
