package kinect

import (
	"image"
	"image/color"

	"github.com/depthsense/kinectcam/rimage"
)

// InvalidDepthCode is the sensor's reserved "no reading" value for the 11-bit
// depth stream. Any code at or beyond it carries no range information.
const InvalidDepthCode rimage.Depth = 2047

// InvalidDistance is the sentinel returned by RawToMeters for unusable codes.
const InvalidDistance = -1.0

// Calibration curve constants for the 11-bit disparity stream, from the
// OpenKinect ROS-era fit.
const (
	depthCurveScale  = -0.0030711016
	depthCurveOffset = 3.3309495161
)

// RawToMeters converts a raw depth code to metric distance using the sensor's
// fixed nonlinear calibration curve. It returns InvalidDistance for the
// invalid-reading code and for codes whose curve value is not a positive
// finite range.
func RawToMeters(code rimage.Depth) float64 {
	if code >= InvalidDepthCode {
		return InvalidDistance
	}
	d := float64(code)*depthCurveScale + depthCurveOffset
	if d <= 0 {
		return InvalidDistance
	}
	return 1.0 / d
}

// DepthToGray8 renders a depth map as an 8-bit image for display. Distance is
// scaled linearly from [0, maxRangeMeters] to [0, 255] for pixels inside the
// region of interest; pixels outside the region, and invalid readings, are
// left at 0. The region is clamped to the map bounds first.
func DepthToGray8(dm *rimage.DepthMap, roi ROI, maxRangeMeters float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, dm.Width(), dm.Height()))
	if maxRangeMeters <= 0 {
		return img
	}
	r := roi.ClampTo(dm.Width(), dm.Height())
	for v := r.YStart; v < r.YStart+r.Height; v++ {
		for u := r.XStart; u < r.XStart+r.Width; u++ {
			d := RawToMeters(dm.GetDepth(u, v))
			if d == InvalidDistance {
				continue
			}
			if d > maxRangeMeters {
				d = maxRangeMeters
			}
			img.SetGray(u, v, color.Gray{Y: uint8(255.0 * d / maxRangeMeters)})
		}
	}
	return img
}
