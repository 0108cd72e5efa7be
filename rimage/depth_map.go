// Package rimage defines the raster types produced by a depth sensor: raw
// depth code maps and the helpers that turn raw sensor pixel buffers into
// standard library images.
package rimage

import (
	"image"

	"github.com/pkg/errors"
)

// Depth is a single raw depth code as reported by the sensor. It is not a
// metric distance; a calibration curve is needed to convert it to meters.
type Depth uint16

// DepthMap is a fixed-size 2D raster of raw depth codes stored row-major.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a zeroed depth map of the given dimensions.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromData wraps a row-major code buffer in a DepthMap. The buffer
// length must equal width*height.
func NewDepthMapFromData(data []Depth, width, height int) (*DepthMap, error) {
	if len(data) != width*height {
		return nil, errors.Errorf("depth buffer size %d does not match dimensions (%d,%d)", len(data), width, height)
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// HasData reports whether the map has non-zero dimensions and a backing buffer.
func (dm *DepthMap) HasData() bool {
	return dm != nil && dm.width > 0 && dm.data != nil
}

// Width returns the horizontal dimension in pixels.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical dimension in pixels.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the image bounds of the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// GetDepth returns the raw code at (x,y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[y*dm.width+x]
}

// Get returns the raw code at the given point.
func (dm *DepthMap) Get(p image.Point) Depth {
	return dm.data[p.Y*dm.width+p.X]
}

// Set writes the raw code at (x,y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[y*dm.width+x] = val
}

// Fill sets every pixel to the given code.
func (dm *DepthMap) Fill(val Depth) {
	for i := range dm.data {
		dm.data[i] = val
	}
}

// CopyFrom overwrites the map's contents from a row-major code buffer of the
// same size. The destination keeps its own backing storage.
func (dm *DepthMap) CopyFrom(data []Depth) error {
	if len(data) != len(dm.data) {
		return errors.Errorf("depth buffer size %d does not match dimensions (%d,%d)", len(data), dm.width, dm.height)
	}
	copy(dm.data, data)
	return nil
}

// Clone returns a deep copy of the map.
func (dm *DepthMap) Clone() *DepthMap {
	out := NewEmptyDepthMap(dm.width, dm.height)
	copy(out.data, dm.data)
	return out
}

// MinMax returns the smallest and largest codes present in the map.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	min := Depth(^uint16(0))
	max := Depth(0)
	for _, z := range dm.data {
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	return min, max
}
