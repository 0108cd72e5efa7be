package fake

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/depthsense/kinectcam/kinect"
	"github.com/depthsense/kinectcam/rimage"
)

func TestOpen(t *testing.T) {
	dev := NewDevice(2, 2)
	on, _ := dev.Opened()
	test.That(t, on, test.ShouldBeFalse)

	test.That(t, dev.Open(3), test.ShouldBeNil)
	on, index := dev.Opened()
	test.That(t, on, test.ShouldBeTrue)
	test.That(t, index, test.ShouldEqual, 3)
	test.That(t, dev.Events(), test.ShouldResemble, []string{"open:3"})

	missing := NewDevice(2, 2)
	missing.FailOpen(errors.New("usb enumeration failed"))
	err := missing.Open(0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "enumeration")
	on, _ = missing.Opened()
	test.That(t, on, test.ShouldBeFalse)

	test.That(t, missing.Close(), test.ShouldBeNil)
	test.That(t, errors.Is(missing.Open(0), kinect.ErrDeviceClosed), test.ShouldBeTrue)
}

func TestSetTilt(t *testing.T) {
	dev := NewDevice(2, 2)
	test.That(t, dev.SetTilt(20), test.ShouldBeNil)
	status, err := dev.UpdateStatus()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status.TiltDegrees, test.ShouldEqual, 20.0)

	test.That(t, dev.Close(), test.ShouldBeNil)
	test.That(t, errors.Is(dev.SetTilt(0), kinect.ErrDeviceClosed), test.ShouldBeTrue)
}

func TestQueuedDeliveryDuringPoll(t *testing.T) {
	dev := NewDevice(2, 2)

	var gotDepth [][]rimage.Depth
	var gotVideo [][]byte
	dev.SetDepthHandler(func(depth []rimage.Depth, _ uint32) {
		gotDepth = append(gotDepth, depth)
	})
	dev.SetVideoHandler(func(pix []byte, _ kinect.VideoFormat, _ uint32) {
		gotVideo = append(gotVideo, pix)
	})

	dev.QueueDepthFrame(make([]rimage.Depth, 4))
	dev.QueueVideoFrame(make([]byte, 12))

	// nothing delivers until the matching stream runs
	_, err := dev.UpdateStatus()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(gotDepth), test.ShouldEqual, 0)
	test.That(t, len(gotVideo), test.ShouldEqual, 0)

	test.That(t, dev.StartDepth(), test.ShouldBeNil)
	test.That(t, dev.StartVideo(kinect.VideoRGB), test.ShouldBeNil)
	_, err = dev.UpdateStatus()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(gotDepth), test.ShouldEqual, 1)
	test.That(t, len(gotVideo), test.ShouldEqual, 1)

	// queues drain: a second poll delivers nothing
	_, err = dev.UpdateStatus()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(gotDepth), test.ShouldEqual, 1)
}

func TestSynthesizedFrames(t *testing.T) {
	dev := NewDevice(2, 2)
	dev.Synthesize(true)

	frames := 0
	dev.SetDepthHandler(func(depth []rimage.Depth, _ uint32) {
		test.That(t, len(depth), test.ShouldEqual, 4)
		frames++
	})
	test.That(t, dev.StartDepth(), test.ShouldBeNil)

	for i := 0; i < 3; i++ {
		_, err := dev.UpdateStatus()
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, frames, test.ShouldEqual, 3)
}

func TestSingleActiveVideoMode(t *testing.T) {
	dev := NewDevice(2, 2)
	test.That(t, dev.StartVideo(kinect.VideoRGB), test.ShouldBeNil)
	test.That(t, dev.StartVideo(kinect.VideoIR8Bit), test.ShouldNotBeNil)
	test.That(t, dev.StopVideo(), test.ShouldBeNil)
	test.That(t, dev.StartVideo(kinect.VideoIR8Bit), test.ShouldBeNil)

	on, format := dev.VideoRunning()
	test.That(t, on, test.ShouldBeTrue)
	test.That(t, format, test.ShouldEqual, kinect.VideoIR8Bit)
}

func TestScriptedStatusAndFailure(t *testing.T) {
	dev := NewDevice(2, 2)
	dev.SetStatus(kinect.DeviceStatus{TiltDegrees: 12.5})

	status, err := dev.UpdateStatus()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, status.TiltDegrees, test.ShouldEqual, 12.5)

	dev.InjectPumpError(errors.New("pump dead"))
	_, err = dev.UpdateStatus()
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, dev.Close(), test.ShouldBeNil)
	_, err = dev.UpdateStatus()
	test.That(t, errors.Is(err, kinect.ErrDeviceClosed), test.ShouldBeTrue)
}

func TestFakeWithDriver(t *testing.T) {
	// the fake has to satisfy the full device contract end to end
	dev := NewDevice(4, 4)
	dev.Synthesize(true)
	test.That(t, dev.LED(), test.ShouldEqual, kinect.LEDOff)
	test.That(t, dev.SetLED(kinect.LEDGreen), test.ShouldBeNil)
	test.That(t, dev.LED(), test.ShouldEqual, kinect.LEDGreen)
	test.That(t, len(dev.Events()), test.ShouldEqual, 0)
	test.That(t, dev.StartDepth(), test.ShouldBeNil)
	test.That(t, dev.Events(), test.ShouldResemble, []string{"start_depth"})
}
