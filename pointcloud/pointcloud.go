// Package pointcloud defines a point cloud and provides a map-backed
// implementation for one. Points are keyed by position, so setting the same
// position twice overwrites rather than duplicates.
package pointcloud

import (
	"github.com/golang/geo/r3"
)

// PointCloud is a general purpose container of points. The basic
// implementation is sparse: only the points that were set exist.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// Set places the given point in the cloud, overwriting any point
	// already at that position.
	Set(p r3.Vector, d Data) error

	// At returns the data of the point at the given position, and whether
	// a point exists there at all.
	At(x, y, z float64) (Data, bool)

	// Iterate calls the given function for each point in the cloud.
	// Iteration stops early if the function returns false.
	Iterate(fn func(p r3.Vector, d Data) bool)
}

// NewVector is a convenience method for creating an r3.Vector.
func NewVector(x, y, z float64) r3.Vector {
	return r3.Vector{X: x, Y: y, Z: z}
}

// CloudContains reports whether the cloud has a point at the given position.
func CloudContains(cloud PointCloud, x, y, z float64) bool {
	_, got := cloud.At(x, y, z)
	return got
}

// ToVectors flattens a cloud into a slice of positions, dropping per-point
// data.
func ToVectors(cloud PointCloud) []r3.Vector {
	out := make([]r3.Vector, 0, cloud.Size())
	cloud.Iterate(func(p r3.Vector, _ Data) bool {
		out = append(out, p)
		return true
	})
	return out
}
