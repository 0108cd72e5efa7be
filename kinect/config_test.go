package kinect

import (
	"testing"

	"go.viam.com/test"

	"github.com/depthsense/kinectcam/rimage/transform"
)

func testConfig() Config {
	return Config{
		Width:          4,
		Height:         4,
		MaxRangeMeters: 4.0,
		Intrinsics: &transform.PinholeCameraIntrinsics{
			Width:  4,
			Height: 4,
			Fx:     10,
			Fy:     10,
			Ppx:    2,
			Ppy:    2,
		},
	}
}

func TestConfigValidate(t *testing.T) {
	conf := testConfig()
	test.That(t, conf.Validate(""), test.ShouldBeNil)

	bad := testConfig()
	bad.Width = 0
	test.That(t, bad.Validate(""), test.ShouldNotBeNil)

	bad = testConfig()
	bad.DeviceIndex = -1
	test.That(t, bad.Validate(""), test.ShouldNotBeNil)

	bad = testConfig()
	bad.MaxRangeMeters = -1
	test.That(t, bad.Validate(""), test.ShouldNotBeNil)

	bad = testConfig()
	bad.Intrinsics = nil
	err := bad.Validate("")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "intrinsics")

	bad = testConfig()
	bad.Intrinsics.Width = 8
	test.That(t, bad.Validate(""), test.ShouldNotBeNil)
}

func TestROIClampTo(t *testing.T) {
	full := FullROI(640, 480)
	test.That(t, full.Area(), test.ShouldEqual, 640*480)
	test.That(t, full.ClampTo(640, 480), test.ShouldResemble, full)

	// hanging off the right and bottom edges
	r := ROI{XStart: 600, Width: 100, YStart: 400, Height: 200}.ClampTo(640, 480)
	test.That(t, r, test.ShouldResemble, ROI{XStart: 600, Width: 40, YStart: 400, Height: 80})

	// negative start folds into the width
	r = ROI{XStart: -10, Width: 30, YStart: -5, Height: 10}.ClampTo(640, 480)
	test.That(t, r, test.ShouldResemble, ROI{XStart: 0, Width: 20, YStart: 0, Height: 5})

	// fully out of bounds collapses to empty, never negative
	r = ROI{XStart: 700, Width: 100, YStart: 500, Height: 100}.ClampTo(640, 480)
	test.That(t, r.Area(), test.ShouldEqual, 0)
	test.That(t, r.Width, test.ShouldBeGreaterThanOrEqualTo, 0)
	test.That(t, r.Height, test.ShouldBeGreaterThanOrEqualTo, 0)
}

func TestROIContains(t *testing.T) {
	r := ROI{XStart: 1, Width: 2, YStart: 1, Height: 2}
	test.That(t, r.Contains(1, 1), test.ShouldBeTrue)
	test.That(t, r.Contains(2, 2), test.ShouldBeTrue)
	test.That(t, r.Contains(3, 2), test.ShouldBeFalse)
	test.That(t, r.Contains(0, 1), test.ShouldBeFalse)
}

func TestConfigROIDefaultsToFullFrame(t *testing.T) {
	conf := testConfig()
	test.That(t, conf.roi(), test.ShouldResemble, FullROI(4, 4))

	conf.DepthROI = &ROI{XStart: 1, Width: 10, YStart: 1, Height: 10}
	test.That(t, conf.roi(), test.ShouldResemble, ROI{XStart: 1, Width: 3, YStart: 1, Height: 3})
}

func TestConfigSwitchInterval(t *testing.T) {
	conf := testConfig()
	test.That(t, conf.switchInterval(), test.ShouldEqual, DefaultStreamSwitchInterval)
	conf.StreamSwitchInterval = DefaultStreamSwitchInterval / 2
	test.That(t, conf.switchInterval(), test.ShouldEqual, DefaultStreamSwitchInterval/2)
}
