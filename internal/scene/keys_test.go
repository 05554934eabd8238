package scene

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryanchriswhite/nativeshot/internal/config"
	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/nativeshot"
	"github.com/bryanchriswhite/nativeshot/internal/xcap"
)

func TestScreenshotKeyNumbersFiles(t *testing.T) {
	k := screenshotKey{dir: "shots"}
	for i, want := range []string{"native_screenshot_0.png", "native_screenshot_1.png", "native_screenshot_2.png"} {
		if got := k.nextPath(); got != filepath.Join("shots", want) {
			t.Fatalf("press %d: path = %q, want %q", i, got, want)
		}
	}
}

func TestScreenshotKeySavesCapture(t *testing.T) {
	dir := t.TempDir()
	facility := xcap.NewVirtual()
	plugin := nativeshot.NewPlugin(facility)
	sc := NewVirtual(facility, config.WindowConfig{Title: "key test", Width: 80, Height: 60})
	app := engine.NewApp().AddPlugin(plugin).AddPlugin(sc)
	t.Cleanup(func() {
		plugin.Wait()
		app.Close()
	})

	k := screenshotKey{dir: dir}
	first := k.press(app, sc.Entity())
	second := k.press(app, sc.Entity())
	if first == second {
		t.Fatalf("both presses returned request %v", first)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(nativeshot.Pending(app)) > 0 && time.Now().Before(deadline) {
		app.Tick()
		time.Sleep(2 * time.Millisecond)
	}

	for _, name := range []string{"native_screenshot_0.png", "native_screenshot_1.png"} {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("%s not written: %v", name, err)
		}
		cfg, err := png.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if cfg.Width != 80 || cfg.Height != 60 {
			t.Fatalf("%s size = %dx%d", name, cfg.Width, cfg.Height)
		}
	}
}
