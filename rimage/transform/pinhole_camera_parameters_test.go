package transform

import (
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestCheckValid(t *testing.T) {
	good := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 525, Fy: 525, Ppx: 320, Ppy: 240}
	test.That(t, good.CheckValid(), test.ShouldBeNil)

	var nilParams *PinholeCameraIntrinsics
	test.That(t, nilParams.CheckValid(), test.ShouldNotBeNil)

	bad := *good
	bad.Width = 0
	test.That(t, bad.CheckValid(), test.ShouldNotBeNil)

	bad = *good
	bad.Fx = -1
	test.That(t, bad.CheckValid(), test.ShouldNotBeNil)

	bad = *good
	bad.Ppy = -0.5
	test.That(t, bad.CheckValid(), test.ShouldNotBeNil)
}

func TestIntrinsicsFromJSONFile(t *testing.T) {
	dir := t.TempDir()
	goodPath := filepath.Join(dir, "intrinsics.json")
	body := `{"width_px": 640, "height_px": 480, "fx": 525.0, "fy": 525.0, "ppx": 319.5, "ppy": 239.5}`
	test.That(t, os.WriteFile(goodPath, []byte(body), 0o600), test.ShouldBeNil)

	params, err := NewPinholeCameraIntrinsicsFromJSONFile(goodPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, params.Width, test.ShouldEqual, 640)
	test.That(t, params.Fx, test.ShouldAlmostEqual, 525.0)
	test.That(t, params.Ppy, test.ShouldAlmostEqual, 239.5)

	_, err = NewPinholeCameraIntrinsicsFromJSONFile(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	badPath := filepath.Join(dir, "bad.json")
	test.That(t, os.WriteFile(badPath, []byte(`{"width_px": 0}`), 0o600), test.ShouldBeNil)
	_, err = NewPinholeCameraIntrinsicsFromJSONFile(badPath)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPointToPixelRoundTrip(t *testing.T) {
	params := &PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 525, Fy: 525, Ppx: 320, Ppy: 240}
	x, y, z := params.PixelToPoint(100, 200, 2.0)
	u, v := params.PointToPixel(x, y, z)
	test.That(t, u, test.ShouldAlmostEqual, 100)
	test.That(t, v, test.ShouldAlmostEqual, 200)

	u, v = params.PointToPixel(1, 1, 0)
	test.That(t, u, test.ShouldEqual, -1.0)
	test.That(t, v, test.ShouldEqual, -1.0)
}
