package commands

import (
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/bryanchriswhite/nativeshot/internal/config"
	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
	"github.com/bryanchriswhite/nativeshot/internal/nativeshot"
	"github.com/bryanchriswhite/nativeshot/internal/scene"
	"github.com/bryanchriswhite/nativeshot/internal/xcap"
)

// windowScene is a plugin that spawns exactly one window entity
type windowScene interface {
	engine.Plugin
	Entity() engine.Entity
}

// runtime is an app wired with a capture backend and the demo window
type runtime struct {
	cfg      *config.Config
	facility xcap.Facility
	plugin   *nativeshot.Plugin
	app      *engine.App
	scene    windowScene
}

// loadConfig reads the config file, applies flag overrides and sets up
// logging from the result
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := configMgr.ApplyOverrides(viper.GetViper()); err != nil {
		return nil, err
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	logger.WithComponent("config").Debug().
		Str("path", configMgr.GetConfigPath()).
		Str("backend", cfg.Backend).
		Msg("Configuration loaded")
	return configMgr, nil
}

// newRuntime opens the backend named by cfg.Backend. auto tries X11 and
// falls back to the virtual backend when no display is reachable.
func newRuntime(cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	switch cfg.Backend {
	case config.BackendVirtual:
		rt.useVirtual()
	case config.BackendX11:
		if err := rt.useNative(); err != nil {
			return nil, err
		}
	default:
		if err := rt.useNative(); err != nil {
			logger.WithComponent("runtime").Warn().
				Err(err).
				Msg("Native backend unavailable, using virtual backend")
			rt.useVirtual()
		}
	}

	rt.app = engine.NewApp()
	if c, ok := rt.facility.(io.Closer); ok {
		rt.app.OnClose(c.Close)
	}
	rt.plugin = nativeshot.NewPlugin(rt.facility)
	rt.app.AddPlugin(rt.plugin).AddPlugin(rt.scene)

	logger.WithComponent("runtime").Info().
		Str("backend", rt.facility.Name()).
		Stringer("window", rt.scene.Entity()).
		Msg("Runtime ready")
	return rt, nil
}

func (rt *runtime) useVirtual() {
	f := xcap.NewVirtual()
	rt.facility = f
	rt.scene = scene.NewVirtual(f, rt.cfg.Window)
}

func (rt *runtime) useNative() error {
	f, err := xcap.New()
	if err != nil {
		return fmt.Errorf("failed to open capture backend: %w", err)
	}
	sc, err := scene.NewX11(rt.cfg.Window)
	if err != nil {
		if c, ok := f.(io.Closer); ok {
			c.Close()
		}
		return fmt.Errorf("failed to open demo window: %w", err)
	}
	rt.facility = f
	rt.scene = sc
	return nil
}

// close waits for in-flight workers and tears the app down
func (rt *runtime) close() error {
	rt.plugin.Wait()
	return rt.app.Close()
}
