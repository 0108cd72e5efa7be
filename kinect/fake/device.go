// Package fake implements an in-memory kinect.Device for tests and demos. It
// mimics the real transfer library's delivery model: frame callbacks fire
// synchronously on the goroutine that polls UpdateStatus.
package fake

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/depthsense/kinectcam/kinect"
	"github.com/depthsense/kinectcam/rimage"
)

var _ kinect.Device = (*Device)(nil)

// Device is a scriptable stand-in for the USB sensor. Frames are either
// queued explicitly or synthesized per poll.
type Device struct {
	mu     sync.Mutex
	width  int
	height int

	depthHandler kinect.DepthHandler
	videoHandler kinect.VideoHandler

	opened      bool
	index       int
	openErr     error
	depthOn     bool
	videoOn     bool
	videoFormat kinect.VideoFormat
	led         kinect.LED
	closed      bool

	pendingDepth [][]rimage.Depth
	pendingVideo [][]byte
	status       kinect.DeviceStatus
	pumpErr      error
	ticks        uint32

	synthesize bool
	events     []string
}

// NewDevice returns a fake device producing frames of the given dimensions.
func NewDevice(width, height int) *Device {
	return &Device{width: width, height: height}
}

// Synthesize makes every poll generate one depth frame, plus one video frame
// when the video path is running, instead of relying on queued frames.
func (d *Device) Synthesize(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.synthesize = on
}

// QueueDepthFrame schedules a raw depth frame for the next poll.
func (d *Device) QueueDepthFrame(codes []rimage.Depth) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingDepth = append(d.pendingDepth, codes)
}

// QueueVideoFrame schedules a raw video frame for the next poll.
func (d *Device) QueueVideoFrame(pix []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingVideo = append(d.pendingVideo, pix)
}

// SetStatus scripts the accelerometer and tilt readings.
func (d *Device) SetStatus(status kinect.DeviceStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = status
}

// InjectPumpError makes every subsequent poll fail, simulating a dead USB
// event pump.
func (d *Device) InjectPumpError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pumpErr = err
}

// FailOpen makes every subsequent Open fail, simulating a missing or busy
// sensor.
func (d *Device) FailOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

// Opened reports whether Open succeeded and with which index.
func (d *Device) Opened() (bool, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened, d.index
}

// LED returns the last LED option set.
func (d *Device) LED() kinect.LED {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.led
}

// VideoRunning reports whether the video path is active and in what format.
func (d *Device) VideoRunning() (bool, kinect.VideoFormat) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.videoOn, d.videoFormat
}

// Events returns the ordered stream start/stop transitions seen so far.
func (d *Device) Events() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

// Open implements kinect.Device.
func (d *Device) Open(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return kinect.ErrDeviceClosed
	}
	if d.openErr != nil {
		return d.openErr
	}
	d.opened = true
	d.index = index
	d.events = append(d.events, fmt.Sprintf("open:%d", index))
	return nil
}

// SetDepthHandler implements kinect.Device.
func (d *Device) SetDepthHandler(h kinect.DepthHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depthHandler = h
}

// SetVideoHandler implements kinect.Device.
func (d *Device) SetVideoHandler(h kinect.VideoHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.videoHandler = h
}

// StartDepth implements kinect.Device.
func (d *Device) StartDepth() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return kinect.ErrDeviceClosed
	}
	if d.depthOn {
		return errors.New("depth stream already running")
	}
	d.depthOn = true
	d.events = append(d.events, "start_depth")
	return nil
}

// StopDepth implements kinect.Device.
func (d *Device) StopDepth() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depthOn = false
	d.events = append(d.events, "stop_depth")
	return nil
}

// StartVideo implements kinect.Device. Like the hardware, it rejects a second
// concurrently active video mode.
func (d *Device) StartVideo(format kinect.VideoFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return kinect.ErrDeviceClosed
	}
	if d.videoOn {
		return errors.Errorf("video stream already running in format %s", d.videoFormat)
	}
	d.videoOn = true
	d.videoFormat = format
	d.events = append(d.events, "start_video:"+format.String())
	return nil
}

// StopVideo implements kinect.Device.
func (d *Device) StopVideo() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.videoOn = false
	d.events = append(d.events, "stop_video")
	return nil
}

// SetLED implements kinect.Device.
func (d *Device) SetLED(led kinect.LED) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return kinect.ErrDeviceClosed
	}
	d.led = led
	return nil
}

// SetTilt implements kinect.Device. The angle is reflected in the next status
// poll immediately; the fake's motor settles instantly.
func (d *Device) SetTilt(degrees float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return kinect.ErrDeviceClosed
	}
	d.status.TiltDegrees = degrees
	return nil
}

// Close implements kinect.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// UpdateStatus implements kinect.Device: it delivers queued (or synthesized)
// frames synchronously through the registered handlers, then reports the
// scripted accelerometer and tilt state.
func (d *Device) UpdateStatus() (kinect.DeviceStatus, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return kinect.DeviceStatus{}, kinect.ErrDeviceClosed
	}
	if d.pumpErr != nil {
		err := d.pumpErr
		d.mu.Unlock()
		return kinect.DeviceStatus{}, err
	}
	d.ticks++
	tick := d.ticks
	status := d.status

	var depthFrames [][]rimage.Depth
	var videoFrames [][]byte
	if d.depthOn {
		depthFrames = d.pendingDepth
		d.pendingDepth = nil
		if d.synthesize && len(depthFrames) == 0 {
			depthFrames = [][]rimage.Depth{d.synthDepthLocked()}
		}
	}
	if d.videoOn {
		videoFrames = d.pendingVideo
		d.pendingVideo = nil
		if d.synthesize && len(videoFrames) == 0 {
			videoFrames = [][]byte{d.synthVideoLocked()}
		}
	}
	depthHandler := d.depthHandler
	videoHandler := d.videoHandler
	videoFormat := d.videoFormat
	d.mu.Unlock()

	// handlers run outside the device lock, matching the real library's
	// re-entrant delivery during event processing
	if depthHandler != nil {
		for _, f := range depthFrames {
			depthHandler(f, tick)
		}
	}
	if videoHandler != nil {
		for _, f := range videoFrames {
			videoHandler(f, videoFormat, tick)
		}
	}
	return status, nil
}

// synthDepthLocked produces a diagonal ramp of valid depth codes.
func (d *Device) synthDepthLocked() []rimage.Depth {
	codes := make([]rimage.Depth, d.width*d.height)
	for v := 0; v < d.height; v++ {
		for u := 0; u < d.width; u++ {
			codes[v*d.width+u] = rimage.Depth((u + v + int(d.ticks)) % 1024)
		}
	}
	return codes
}

// synthVideoLocked produces a gradient frame in the running video format.
func (d *Device) synthVideoLocked() []byte {
	if d.videoFormat == kinect.VideoIR8Bit {
		pix := make([]byte, d.width*d.height)
		for i := range pix {
			pix[i] = byte(i + int(d.ticks))
		}
		return pix
	}
	pix := make([]byte, d.width*d.height*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i] = byte(i / 3)
		pix[i+1] = byte(d.ticks)
		pix[i+2] = byte(i/3 + int(d.ticks))
	}
	return pix
}
