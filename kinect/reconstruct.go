package kinect

import (
	"image/color"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/depthsense/kinectcam/pointcloud"
	"github.com/depthsense/kinectcam/rimage"
	"github.com/depthsense/kinectcam/rimage/transform"
)

// Reconstructor turns raw depth maps into 3D geometry. It bundles the
// per-session state reconstruction depends on, the projection ray table and
// the region of interest, so the conversion path carries no ambient state and
// can be exercised without a device or transport.
type Reconstructor struct {
	rays *transform.ProjectionRays
	roi  ROI
}

// NewReconstructor builds the projection ray table from the intrinsics and
// clamps the region of interest to the table bounds. Rebuilding on an
// intrinsics change means constructing a new Reconstructor.
func NewReconstructor(params *transform.PinholeCameraIntrinsics, roi ROI) (*Reconstructor, error) {
	rays, err := transform.BuildProjectionRays(params)
	if err != nil {
		return nil, errors.Wrap(err, "cannot build projection ray table")
	}
	return &Reconstructor{
		rays: rays,
		roi:  roi.ClampTo(rays.Width(), rays.Height()),
	}, nil
}

// newReconstructorFromRays is the synthetic-table entry point used by tests
// and calibration tooling.
func newReconstructorFromRays(rays *transform.ProjectionRays, roi ROI) *Reconstructor {
	return &Reconstructor{rays: rays, roi: roi.ClampTo(rays.Width(), rays.Height())}
}

// ROI returns the clamped region of interest in effect.
func (rec *Reconstructor) ROI() ROI {
	return rec.roi
}

// Point reconstructs the 3D point at pixel (u,v) of the depth map. It reports
// false when the pixel lies outside the region of interest or its depth code
// carries no range information.
func (rec *Reconstructor) Point(dm *rimage.DepthMap, u, v int) (r3.Vector, bool) {
	if !rec.roi.Contains(u, v) {
		return r3.Vector{}, false
	}
	d := RawToMeters(dm.GetDepth(u, v))
	if d == InvalidDistance {
		return r3.Vector{}, false
	}
	return rec.rays.PointAt(u, v, d), true
}

// Points reconstructs the unordered point list for the region of interest.
// Invalid readings are omitted, so the slice length varies per frame.
func (rec *Reconstructor) Points(dm *rimage.DepthMap) []r3.Vector {
	pts := make([]r3.Vector, 0, rec.roi.Area())
	rec.iterate(dm, func(_, _ int, p r3.Vector) {
		pts = append(pts, p)
	})
	return pts
}

// PointCloud reconstructs the structured cloud for the region of interest.
// When a color image of matching dimensions is supplied, each point carries
// the color of its pixel.
func (rec *Reconstructor) PointCloud(dm *rimage.DepthMap, colorPix []byte) (pointcloud.PointCloud, error) {
	withColor := false
	if colorPix != nil {
		if len(colorPix) != dm.Width()*dm.Height()*3 {
			return nil, errors.Errorf("color buffer size %d does not match depth dimensions (%d,%d)",
				len(colorPix), dm.Width(), dm.Height())
		}
		withColor = true
	}
	cloud := pointcloud.NewWithPrealloc(rec.roi.Area())
	var err error
	rec.iterate(dm, func(u, v int, p r3.Vector) {
		var d pointcloud.Data
		if withColor {
			i := (v*dm.Width() + u) * 3
			d = pointcloud.NewColoredData(color.NRGBA{R: colorPix[i], G: colorPix[i+1], B: colorPix[i+2], A: 255})
		} else {
			d = pointcloud.NewBasicData()
		}
		if setErr := cloud.Set(p, d); setErr != nil && err == nil {
			err = setErr
		}
	})
	if err != nil {
		return nil, err
	}
	return cloud, nil
}

func (rec *Reconstructor) iterate(dm *rimage.DepthMap, fn func(u, v int, p r3.Vector)) {
	roi := rec.roi.ClampTo(dm.Width(), dm.Height())
	for v := roi.YStart; v < roi.YStart+roi.Height; v++ {
		for u := roi.XStart; u < roi.XStart+roi.Width; u++ {
			if p, ok := rec.Point(dm, u, v); ok {
				fn(u, v, p)
			}
		}
	}
}
