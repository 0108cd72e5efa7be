package kinect

import (
	"context"
	"image"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/depthsense/kinectcam/pointcloud"
	"github.com/depthsense/kinectcam/rimage/transform"
)

// OutputKind identifies one of the driver's published outputs.
type OutputKind int

// The outputs the driver can produce each cycle.
const (
	OutputDepthImage OutputKind = iota
	OutputImage
	OutputPoints
	OutputPointCloud
	OutputCameraInfo
	OutputIMU
)

func (k OutputKind) String() string {
	switch k {
	case OutputDepthImage:
		return "depth_image"
	case OutputImage:
		return "image"
	case OutputPoints:
		return "points"
	case OutputPointCloud:
		return "point_cloud"
	case OutputCameraInfo:
		return "camera_info"
	case OutputIMU:
		return "imu"
	default:
		return "unknown"
	}
}

// CameraInfo is the calibration metadata published alongside image outputs.
type CameraInfo struct {
	SessionID  uuid.UUID
	Intrinsics transform.PinholeCameraIntrinsics
	// CameraMatrix is the 3x3 projection matrix derived from the intrinsics.
	CameraMatrix *mat.Dense
}

// InertialState is the inertial message derived from one status poll. It
// always reflects the latest poll, never history.
type InertialState struct {
	// Acceleration is the linear acceleration in m/s^2.
	Acceleration r3.Vector
	// TiltDegrees is the motorized tilt angle reported by the device.
	TiltDegrees float64
}

// PitchRadians returns the device pitch implied by the tilt angle.
func (s InertialState) PitchRadians() float64 {
	return s.TiltDegrees * (math.Pi / 180.0)
}

// Transport is the publish collaborator. The driver asks it which outputs
// currently have consumers before doing any reconstruction work, and hands it
// finished frames. Publish errors are reported back but never retried; a
// failed emit must not block the capture cycle.
type Transport interface {
	// Subscribers returns how many consumers are attached to an output.
	Subscribers(kind OutputKind) int

	PublishDepthImage(ctx context.Context, img *image.Gray, stamp time.Time) error
	PublishImage(ctx context.Context, img image.Image, mode StreamMode, stamp time.Time) error
	PublishPoints(ctx context.Context, pts []r3.Vector, stamp time.Time) error
	PublishPointCloud(ctx context.Context, pc pointcloud.PointCloud, stamp time.Time) error
	PublishCameraInfo(ctx context.Context, info CameraInfo, stamp time.Time) error
	PublishIMU(ctx context.Context, state InertialState, stamp time.Time) error
}
