package scene

import (
	"fmt"
	"path/filepath"

	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
	"github.com/bryanchriswhite/nativeshot/internal/nativeshot"
	"github.com/bryanchriswhite/nativeshot/internal/sink"
)

// screenshotKey saves a numbered PNG of a window each time it is pressed
type screenshotKey struct {
	dir string
	n   int
}

func (k *screenshotKey) nextPath() string {
	path := filepath.Join(k.dir, fmt.Sprintf("native_screenshot_%d.png", k.n))
	k.n++
	return path
}

// press requests a capture of target written to the next numbered file
func (k *screenshotKey) press(app *engine.App, target engine.Entity) engine.Entity {
	path := k.nextPath()
	logger.WithComponent("scene").Info().
		Str("path", path).
		Msgf("Capturing native screenshot -> %s", path)
	return nativeshot.Request(app, target, sink.SaveToDisk(path))
}
