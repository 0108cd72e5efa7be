package pointcloud

import (
	"image/color"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPointCloudBasic(t *testing.T) {
	pc := New()
	test.That(t, pc.Size(), test.ShouldEqual, 0)

	p0 := NewVector(0, 0, 0)
	d0 := NewValueData(5)
	test.That(t, pc.Set(p0, d0), test.ShouldBeNil)
	d, got := pc.At(0, 0, 0)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d, test.ShouldResemble, d0)

	_, got = pc.At(1, 0, 1)
	test.That(t, got, test.ShouldBeFalse)

	p1 := NewVector(1, 0, 1)
	d1 := NewValueData(17)
	test.That(t, pc.Set(p1, d1), test.ShouldBeNil)

	p2 := NewVector(-1, -2, 1)
	d2 := NewValueData(81)
	test.That(t, pc.Set(p2, d2), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 3)

	count := 0
	pc.Iterate(func(p r3.Vector, d Data) bool {
		switch p.X {
		case 0:
			test.That(t, p, test.ShouldResemble, p0)
		case 1:
			test.That(t, p, test.ShouldResemble, p1)
		case -1:
			test.That(t, p, test.ShouldResemble, p2)
		}
		count++
		return true
	})
	test.That(t, count, test.ShouldEqual, 3)

	test.That(t, CloudContains(pc, 1, 0, 1), test.ShouldBeTrue)
	test.That(t, CloudContains(pc, 1, 1, 1), test.ShouldBeFalse)
}

func TestPointCloudSetOverwrites(t *testing.T) {
	pc := New()
	p := NewVector(1, 2, 3)
	test.That(t, pc.Set(p, NewValueData(1)), test.ShouldBeNil)
	test.That(t, pc.Set(p, NewValueData(2)), test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 1)
	d, got := pc.At(1, 2, 3)
	test.That(t, got, test.ShouldBeTrue)
	test.That(t, d.Value(), test.ShouldEqual, 2)
}

func TestPointCloudIterateStops(t *testing.T) {
	pc := NewWithPrealloc(3)
	test.That(t, pc.Set(NewVector(1, 0, 0), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(2, 0, 0), nil), test.ShouldBeNil)
	test.That(t, pc.Set(NewVector(3, 0, 0), nil), test.ShouldBeNil)

	count := 0
	pc.Iterate(func(p r3.Vector, d Data) bool {
		count++
		return count < 2
	})
	test.That(t, count, test.ShouldEqual, 2)
}

func TestData(t *testing.T) {
	d := NewBasicData()
	test.That(t, d.HasColor(), test.ShouldBeFalse)
	test.That(t, d.HasValue(), test.ShouldBeFalse)

	d = NewColoredData(color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	test.That(t, d.HasColor(), test.ShouldBeTrue)
	r, g, b := d.RGB255()
	test.That(t, r, test.ShouldEqual, uint8(10))
	test.That(t, g, test.ShouldEqual, uint8(20))
	test.That(t, b, test.ShouldEqual, uint8(30))

	d = d.SetValue(99)
	test.That(t, d.HasValue(), test.ShouldBeTrue)
	test.That(t, d.Value(), test.ShouldEqual, 99)

	vecs := ToVectors(func() PointCloud {
		pc := New()
		_ = pc.Set(NewVector(1, 1, 1), d)
		return pc
	}())
	test.That(t, len(vecs), test.ShouldEqual, 1)
	test.That(t, vecs[0], test.ShouldResemble, NewVector(1, 1, 1))
}
