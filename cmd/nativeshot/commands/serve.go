package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/nativeshot/internal/api"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the demo window and serve the screenshot API",
	Long: `Open the demo window and start the HTTP API. Screenshots are requested
with POST /api/windows/{entity}/screenshots and announced on the
/api/events websocket.`,
	Example: `  # Start server on default port (8080)
  nativeshot serve

  # Start server on custom port
  nativeshot serve --port 9090

  # Headless with debug logging
  nativeshot serve --backend virtual --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()
	log := logger.WithComponent("serve")

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	server := api.NewServer(rt.app, rt.plugin, configMgr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return server.Start(ctx, cfg.ServerPort)
	})
	p.Go(func(ctx context.Context) error {
		return rt.app.Run(ctx, cfg.TickInterval())
	})

	fmt.Println()
	log.Info().Msg("✅ nativeshot is running!")
	log.Info().Msgf("   - API: http://localhost:%d/api", cfg.ServerPort)
	log.Info().Msgf("   - Window entity: %d", uint64(rt.scene.Entity()))
	log.Info().Msg("   - Press Ctrl+C to stop")
	fmt.Println()

	err = p.Wait()
	log.Info().Msg("Shutting down gracefully...")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
