package commands

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/nativeshot/internal/config"
	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/scene"
	"github.com/bryanchriswhite/nativeshot/internal/xcap"
)

func virtualRuntime(t *testing.T, cc config.CaptureConfig) *runtime {
	t.Helper()

	cfg := config.Defaults()
	cfg.Backend = config.BackendVirtual
	cfg.Window = config.WindowConfig{Title: "nativeshot CI test", Width: 200, Height: 100}
	cfg.Capture = cc

	rt, err := newRuntime(cfg)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	t.Cleanup(func() { rt.close() })
	return rt
}

func run(t *testing.T, app *engine.App) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Run(ctx, time.Millisecond)
}

func TestOneShotSavesCapture(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out", "native_screenshot.png")
	cc := config.CaptureConfig{Output: out, WaitTicks: 3, TimeoutTicks: 5000}
	rt := virtualRuntime(t, cc)
	rt.app.AddSystem("capture.oneshot", oneShot(rt.scene.Entity(), cc))

	if err := run(t, rt.app); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rt.app.Ticks() < 4 {
		t.Fatalf("finished after %d ticks, capture requested too early", rt.app.Ticks())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("screenshot not written: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("size = %v", b)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if uint8(r>>8) != scene.Background.R || uint8(g>>8) != scene.Background.G || uint8(b>>8) != scene.Background.B {
		t.Fatalf("corner pixel = %v", img.At(0, 0))
	}
	if rt.plugin.Stats().Completed != 1 {
		t.Fatalf("stats = %+v", rt.plugin.Stats())
	}
}

func TestOneShotTimesOut(t *testing.T) {
	cc := config.CaptureConfig{Output: filepath.Join(t.TempDir(), "x.png"), WaitTicks: 50, TimeoutTicks: 3}
	rt := virtualRuntime(t, cc)
	rt.app.AddSystem("capture.oneshot", oneShot(rt.scene.Entity(), cc))

	err := run(t, rt.app)
	if !errors.Is(err, ErrCaptureTimeout) {
		t.Fatalf("Run = %v, want ErrCaptureTimeout", err)
	}
	if rt.app.Ticks() != 3 {
		t.Fatalf("ticks = %d, want 3", rt.app.Ticks())
	}
}

func TestOneShotRetiredWithoutCapture(t *testing.T) {
	cc := config.CaptureConfig{Output: filepath.Join(t.TempDir(), "x.png"), WaitTicks: 1, TimeoutTicks: 5000}
	rt := virtualRuntime(t, cc)

	// An entity without a window handle is retired by the coordinator
	bare := rt.app.World.Spawn()
	rt.app.AddSystem("capture.oneshot", oneShot(bare, cc))

	err := run(t, rt.app)
	if !errors.Is(err, ErrCaptureDropped) {
		t.Fatalf("Run = %v, want ErrCaptureDropped", err)
	}
	if rt.plugin.Stats().MissingHandle != 1 {
		t.Fatalf("stats = %+v", rt.plugin.Stats())
	}
}

func TestPrintWindowsTable(t *testing.T) {
	var buf bytes.Buffer
	err := printWindowsTable(&buf, []xcap.Info{
		{ID: 0x4200001, Title: "nativeshot CI test", Width: 400, Height: 300},
		{ID: 0x10, Title: "no size"},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"0x04200001", "400x300", "nativeshot CI test", "0x00000010"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}
