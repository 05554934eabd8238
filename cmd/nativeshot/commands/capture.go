package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/nativeshot/internal/config"
	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
	"github.com/bryanchriswhite/nativeshot/internal/nativeshot"
	"github.com/bryanchriswhite/nativeshot/internal/sink"
)

var (
	// ErrCaptureTimeout means no screenshot arrived before the tick budget ran out
	ErrCaptureTimeout = errors.New("timed out waiting for native screenshot")
	// ErrCaptureDropped means the request was retired without a completion event
	ErrCaptureDropped = errors.New("screenshot request retired without a capture")
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Open the demo window and save one screenshot of it",
	Long: `Open the demo window, let it render for a number of ticks, capture its
native pixels once and save them to disk.

The command exits non-zero when the capture fails or no screenshot arrives
within the timeout, which makes it usable as a CI smoke test.`,
	Example: `  # Capture to the configured output path
  nativeshot capture

  # Headless run in CI
  nativeshot capture --backend virtual --output out/shot.png

  # Wait longer before capturing
  nativeshot capture --wait-ticks 120 --timeout-ticks 600`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	flags := captureCmd.Flags()
	flags.StringP("output", "o", "", "output file (.png, .bmp, .tif)")
	flags.Int("wait-ticks", 0, "ticks to wait before requesting the capture (default is 30)")
	flags.Int("timeout-ticks", 0, "ticks after which the capture counts as failed (default is 120)")

	viper.BindPFlag("capture.output", flags.Lookup("output"))
	viper.BindPFlag("capture.wait_ticks", flags.Lookup("wait-ticks"))
	viper.BindPFlag("capture.timeout_ticks", flags.Lookup("timeout-ticks"))
}

func runCapture(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()

	if _, err := sink.FormatFromPath(cfg.Capture.Output); err != nil {
		return err
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.app.AddSystem("capture.oneshot", oneShot(rt.scene.Entity(), cfg.Capture))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.app.Run(ctx, cfg.TickInterval()); err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	fmt.Printf("✅ Screenshot saved to %s\n", cfg.Capture.Output)
	return nil
}

// oneShot requests a capture of window once WaitTicks ticks have passed and
// exits the app when it is saved, fails, or TimeoutTicks is reached
func oneShot(window engine.Entity, cc config.CaptureConfig) engine.System {
	var (
		ticks     int
		requested bool
		request   engine.Entity
		saved     bool
	)
	log := logger.WithComponent("capture")

	save := func(app *engine.App, ev nativeshot.NativeScreenshotCaptured) {
		if err := sink.Save(cc.Output, ev); err != nil {
			log.Error().Err(err).Str("path", cc.Output).Msg("Failed to save screenshot")
			app.Exit(err)
			return
		}
		saved = true
		log.Info().
			Uint32("width", ev.Width).
			Uint32("height", ev.Height).
			Str("path", cc.Output).
			Msgf("[nativeshot] Saved %dx%d screenshot to %s", ev.Width, ev.Height, cc.Output)
		app.Exit(nil)
	}

	return func(app *engine.App) {
		ticks++

		switch {
		case !requested && ticks >= cc.WaitTicks:
			requested = true
			request = nativeshot.Request(app, window, save)
			log.Debug().
				Int("tick", ticks).
				Stringer("request", request).
				Msg("Requesting native screenshot")
		case requested && !saved && nativeshot.StateOf(app, request) == nativeshot.StateRetired:
			app.Exit(ErrCaptureDropped)
		case ticks >= cc.TimeoutTicks:
			app.Exit(fmt.Errorf("%w after %d ticks", ErrCaptureTimeout, ticks))
		}
	}
}
