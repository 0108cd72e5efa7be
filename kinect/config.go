package kinect

import (
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/depthsense/kinectcam/rimage/transform"
)

// Default capture geometry for the medium-resolution depth stream.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// DefaultStreamSwitchInterval is how often the calibration-mode switcher
// toggles the video path between color and infrared.
const DefaultStreamSwitchInterval = 3 * time.Second

// ROI is a rectangular pixel sub-window of the depth image selected for point
// reconstruction and visualization.
type ROI struct {
	XStart int `json:"horiz_start"`
	Width  int `json:"horiz_width"`
	YStart int `json:"vert_start"`
	Height int `json:"vert_height"`
}

// FullROI covers an entire image of the given dimensions.
func FullROI(width, height int) ROI {
	return ROI{Width: width, Height: height}
}

// ClampTo fits the region inside an image of the given dimensions. A
// misconfigured region shrinks to whatever part of it lies in bounds, possibly
// to an empty region; reconstruction then skips those pixels instead of
// reading out of bounds.
func (r ROI) ClampTo(width, height int) ROI {
	out := r
	if out.XStart < 0 {
		out.Width += out.XStart
		out.XStart = 0
	}
	if out.YStart < 0 {
		out.Height += out.YStart
		out.YStart = 0
	}
	if out.XStart > width {
		out.XStart = width
	}
	if out.YStart > height {
		out.YStart = height
	}
	if out.XStart+out.Width > width {
		out.Width = width - out.XStart
	}
	if out.YStart+out.Height > height {
		out.Height = height - out.YStart
	}
	if out.Width < 0 {
		out.Width = 0
	}
	if out.Height < 0 {
		out.Height = 0
	}
	return out
}

// Area returns the number of pixels inside the region.
func (r ROI) Area() int {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// Contains reports whether pixel (u,v) lies inside the region.
func (r ROI) Contains(u, v int) bool {
	return u >= r.XStart && u < r.XStart+r.Width && v >= r.YStart && v < r.YStart+r.Height
}

// Config describes one capture session. It arrives from the configuration
// collaborator and may be replaced at runtime via Driver.Reconfigure.
type Config struct {
	// DeviceIndex selects which attached sensor to open. It cannot change
	// at runtime; switching devices means a new session.
	DeviceIndex int `json:"device_index"`

	Width  int `json:"width_px"`
	Height int `json:"height_px"`

	// DepthROI constrains reconstruction and visualization. Nil means the
	// full frame.
	DepthROI *ROI `json:"depth_roi,omitempty"`

	// MaxRangeMeters is the far limit of the 8-bit depth visualization.
	MaxRangeMeters float64 `json:"max_range_m"`

	// EnableRGBStream statically enables the color stream. When false the
	// video path runs only while the color output has subscribers.
	EnableRGBStream bool `json:"enable_rgb_stream"`

	// CalibrationMode hands the video path to the stream switcher, which
	// alternates color and infrared on a timer. It overrides
	// EnableRGBStream while set.
	CalibrationMode bool `json:"calibration_mode"`

	// StreamSwitchInterval overrides the calibration-mode toggle period.
	// Zero means DefaultStreamSwitchInterval.
	StreamSwitchInterval time.Duration `json:"-"`

	// Intrinsics calibrates the depth camera for 3D reconstruction. If nil,
	// IntrinsicsPath is consulted instead.
	Intrinsics *transform.PinholeCameraIntrinsics `json:"intrinsics,omitempty"`

	// IntrinsicsPath is a JSON file holding the intrinsics.
	IntrinsicsPath string `json:"intrinsics_path,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.DeviceIndex < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("device_index cannot be negative, got %d", conf.DeviceIndex))
	}
	if conf.Width <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("width_px must be positive, got %d", conf.Width))
	}
	if conf.Height <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("height_px must be positive, got %d", conf.Height))
	}
	if conf.MaxRangeMeters < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("max_range_m cannot be negative, got %f", conf.MaxRangeMeters))
	}
	if conf.Intrinsics == nil && conf.IntrinsicsPath == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "intrinsics")
	}
	if conf.Intrinsics != nil {
		if err := conf.Intrinsics.CheckValid(); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
		if conf.Intrinsics.Width != conf.Width || conf.Intrinsics.Height != conf.Height {
			return utils.NewConfigValidationError(path,
				errors.Errorf("intrinsics dimensions (%d,%d) do not match stream dimensions (%d,%d)",
					conf.Intrinsics.Width, conf.Intrinsics.Height, conf.Width, conf.Height))
		}
	}
	return nil
}

// roi returns the configured region clamped to the stream bounds, defaulting
// to the full frame.
func (conf *Config) roi() ROI {
	if conf.DepthROI == nil {
		return FullROI(conf.Width, conf.Height)
	}
	return conf.DepthROI.ClampTo(conf.Width, conf.Height)
}

// switchInterval returns the calibration toggle period.
func (conf *Config) switchInterval() time.Duration {
	if conf.StreamSwitchInterval <= 0 {
		return DefaultStreamSwitchInterval
	}
	return conf.StreamSwitchInterval
}

// loadIntrinsics resolves the intrinsics from the inline value or the file.
func (conf *Config) loadIntrinsics() (*transform.PinholeCameraIntrinsics, error) {
	if conf.Intrinsics != nil {
		return conf.Intrinsics, nil
	}
	return transform.NewPinholeCameraIntrinsicsFromJSONFile(conf.IntrinsicsPath)
}
