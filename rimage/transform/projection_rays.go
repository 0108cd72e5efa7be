package transform

import (
	"github.com/golang/geo/r3"
)

// Ray is the precomputed inverse-pinhole coefficient pair for one pixel. A
// point at metric depth z projects to (X*z, Y*z, z).
type Ray struct {
	X float64
	Y float64
}

// ProjectionRays is a per-pixel table of projection rays for a full image. It
// is built once from a set of intrinsics and treated as immutable afterwards;
// an intrinsics change means building a new table, not mutating this one.
type ProjectionRays struct {
	width  int
	height int
	rays   []Ray
}

// BuildProjectionRays computes a ray for every pixel of the image described
// by the intrinsics. Building is cheap enough to redo whenever the
// calibration changes.
func BuildProjectionRays(params *PinholeCameraIntrinsics) (*ProjectionRays, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	pr := &ProjectionRays{
		width:  params.Width,
		height: params.Height,
		rays:   make([]Ray, params.Width*params.Height),
	}
	for v := 0; v < params.Height; v++ {
		for u := 0; u < params.Width; u++ {
			pr.rays[v*params.Width+u] = Ray{
				X: (float64(u) - params.Ppx) / params.Fx,
				Y: (float64(v) - params.Ppy) / params.Fy,
			}
		}
	}
	return pr, nil
}

// NewProjectionRaysFromTable builds a table directly from per-pixel rays,
// row-major. Intended for synthetic tables in tests and calibration tooling.
func NewProjectionRaysFromTable(rays []Ray, width, height int) *ProjectionRays {
	if len(rays) != width*height {
		panic("projection ray table dimensions do not match ray count")
	}
	return &ProjectionRays{width: width, height: height, rays: rays}
}

// Width returns the table's horizontal dimension in pixels.
func (pr *ProjectionRays) Width() int {
	return pr.width
}

// Height returns the table's vertical dimension in pixels.
func (pr *ProjectionRays) Height() int {
	return pr.height
}

// At returns the ray for pixel (u,v).
func (pr *ProjectionRays) At(u, v int) Ray {
	return pr.rays[v*pr.width+u]
}

// PointAt projects pixel (u,v) at the given metric depth into 3D space.
func (pr *ProjectionRays) PointAt(u, v int, depthMeters float64) r3.Vector {
	ray := pr.rays[v*pr.width+u]
	return r3.Vector{
		X: ray.X * depthMeters,
		Y: ray.Y * depthMeters,
		Z: depthMeters,
	}
}
