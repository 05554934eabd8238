//go:build !(linux || freebsd || openbsd || netbsd)

package scene

import (
	"github.com/bryanchriswhite/nativeshot/internal/config"
	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/xcap"
)

// X11 is unavailable on this platform
type X11 struct{}

// NewX11 always fails outside X11 platforms
func NewX11(config.WindowConfig) (*X11, error) {
	return nil, xcap.ErrUnsupportedPlatform
}

func (s *X11) Build(*engine.App) {}

func (s *X11) Entity() engine.Entity { return 0 }

func (s *X11) WindowID() uint32 { return 0 }
