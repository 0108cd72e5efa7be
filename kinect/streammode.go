package kinect

import (
	"context"
	"time"

	"go.viam.com/utils"
)

// StreamMode says which capture type the shared physical video path is
// currently delivering. Exactly one mode is active at a time; the transition
// always stops the running stream before starting the other, since the
// hardware rejects two concurrently active video modes.
type StreamMode uint8

const (
	// ColorActive means the video path delivers visible-light frames.
	ColorActive StreamMode = iota
	// InfraredActive means the video path delivers infrared frames.
	InfraredActive
)

func (m StreamMode) String() string {
	switch m {
	case ColorActive:
		return "color"
	case InfraredActive:
		return "infrared"
	default:
		return "unknown"
	}
}

// next returns the other mode.
func (m StreamMode) next() StreamMode {
	if m == ColorActive {
		return InfraredActive
	}
	return ColorActive
}

// videoFormat maps the mode to the device stream format that produces it.
func (m StreamMode) videoFormat() VideoFormat {
	if m == InfraredActive {
		return VideoIR8Bit
	}
	return VideoRGB
}

// startSwitcher launches the calibration-mode worker that toggles the video
// path between color and infrared on a timer. Intrinsics calibration needs
// alternating looks at the checkerboard through both streams.
func (d *Driver) startSwitcher(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	d.switchCancel = cancel
	ticker := d.clock.Ticker(interval)
	d.workers.Add(1)
	utils.PanicCapturingGo(func() {
		defer d.workers.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.toggleStreamMode(); err != nil {
					d.logger.Errorw("stream mode switch failed", "error", err)
				}
			}
		}
	})
}

// stopSwitcher halts the calibration worker and waits for it to exit. Must
// not be called with the buffer mutex held; the worker needs that mutex to
// finish an in-flight toggle.
func (d *Driver) stopSwitcher() {
	if d.switchCancel != nil {
		d.switchCancel()
		d.switchCancel = nil
	}
	d.workers.Wait()
}

// toggleStreamMode flips the video path to the other mode. The stop/start
// pair runs under the buffer mutex so a frame can never be stored with a
// stale mode tag mid-switch.
func (d *Driver) toggleStreamMode() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	target := d.mode.next()
	if err := d.startVideoLocked(target); err != nil {
		return err
	}
	d.logger.Debugw("stream mode switched", "mode", target.String())
	return nil
}

// StreamMode reports which capture type the video path currently delivers.
func (d *Driver) StreamMode() StreamMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}
