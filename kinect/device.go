// Package kinect implements a driver for a Kinect-style consumer depth
// camera: it pulls raw depth, color/infrared, and tilt/accelerometer samples
// off the device, reconstructs calibrated images and point clouds from them,
// and hands the results to a publish transport.
package kinect

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/depthsense/kinectcam/rimage"
)

// VideoFormat selects what the device's single physical video path delivers.
// The hardware cannot run both formats at once.
type VideoFormat int

const (
	// VideoRGB delivers visible-light frames as packed 24-bit RGB.
	VideoRGB VideoFormat = iota
	// VideoIR8Bit delivers infrared intensity frames, one byte per pixel.
	VideoIR8Bit
)

func (f VideoFormat) String() string {
	switch f {
	case VideoRGB:
		return "rgb"
	case VideoIR8Bit:
		return "ir8"
	default:
		return "unknown"
	}
}

// LED is a device LED option.
type LED int

// The LED options the motor board understands.
const (
	LEDOff LED = iota
	LEDGreen
	LEDRed
	LEDYellow
	LEDBlinkGreen
)

// DeviceStatus is the result of one status poll: the freshest accelerometer
// and tilt readings. It always reflects the latest poll, never history.
type DeviceStatus struct {
	Accel       r3.Vector // [m/s^2]
	TiltDegrees float64
}

// DepthHandler receives one raw depth frame. The timestamp is the device's
// own tick counter at acquisition. Handlers may be invoked re-entrantly while
// UpdateStatus is pumping events and must not retain the buffer past the
// call.
type DepthHandler func(depth []rimage.Depth, timestamp uint32)

// VideoHandler receives one raw video frame in the format the video path was
// started with. Same re-entrancy and ownership rules as DepthHandler.
type VideoHandler func(pix []byte, format VideoFormat, timestamp uint32)

// ErrDeviceClosed is returned by device operations after Close.
var ErrDeviceClosed = errors.New("device is closed")

// Device is the narrow surface the driver needs from the USB sensor library.
// Implementations wrap the actual transfer stack (libfreenect or similar);
// the driver never touches USB directly.
type Device interface {
	// Open connects to the attached sensor at the given enumeration index.
	// It must succeed before any stream starts.
	Open(index int) error

	// SetDepthHandler registers the sink for raw depth frames. Must be
	// called before StartDepth.
	SetDepthHandler(h DepthHandler)

	// SetVideoHandler registers the sink for raw video frames. Must be
	// called before StartVideo.
	SetVideoHandler(h VideoHandler)

	// StartDepth begins depth capture.
	StartDepth() error

	// StopDepth halts depth capture.
	StopDepth() error

	// StartVideo begins video capture in the given format. The caller must
	// stop any running video stream first; the hardware rejects two
	// concurrently active video modes.
	StartVideo(format VideoFormat) error

	// StopVideo halts video capture.
	StopVideo() error

	// UpdateStatus pumps pending USB events, which delivers queued frame
	// callbacks synchronously on the calling goroutine, and refreshes the
	// accelerometer and tilt state. An error means the event pump failed
	// and the device session is over.
	UpdateStatus() (DeviceStatus, error)

	// SetLED sets the device LED.
	SetLED(led LED) error

	// SetTilt drives the tilt motor to the given angle in degrees. The new
	// angle shows up in later status polls once the motor settles.
	SetTilt(degrees float64) error

	// Close releases the device.
	Close() error
}
