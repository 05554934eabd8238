package nativeshot

import (
	"fmt"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/bryanchriswhite/nativeshot/internal/engine"
	"github.com/bryanchriswhite/nativeshot/internal/handle"
	"github.com/bryanchriswhite/nativeshot/internal/logger"
	"github.com/bryanchriswhite/nativeshot/internal/xcap"
)

// job is everything a worker carries off the loop goroutine
type job struct {
	entity   engine.Entity
	handle   handle.RawHandle
	title    string
	hasTitle bool
}

// dispatcher starts one short-lived goroutine per request. There is no
// pool: captures are user-initiated and rare.
// TODO: bound concurrency before this is used for continuous capture.
type dispatcher struct {
	facility xcap.Facility
	workers  conc.WaitGroup
}

func (d *dispatcher) spawn(j job, tx captureSender) {
	d.workers.Go(func() {
		img, err := d.capture(j)
		if !tx.send(result{entity: j.entity, image: img, err: err}) {
			logger.WithComponent(component).Debug().
				Stringer("entity", j.entity).
				Msg("Receiver closed, dropping capture result")
		}
	})
}

// capture runs locate then readPixels, turning a panic inside the platform
// code into a capture failure
func (d *dispatcher) capture(j job) (img Image, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		var w xcap.Window
		w, err = locate(d.facility, j.handle, j.title, j.hasTitle)
		if err != nil {
			return
		}
		img, err = readPixels(w)
	})
	if r := pc.Recovered(); r != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrCaptureFailed, r.AsError())
	}
	return img, err
}

// wait blocks until every started worker has sent its result
func (d *dispatcher) wait() {
	d.workers.Wait()
}
