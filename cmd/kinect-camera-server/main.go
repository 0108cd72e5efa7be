// Package main runs the depth camera acquisition loop against a synthetic
// device and logs what would be published. It exists to soak the driver and
// to demo the pipeline without hardware attached; a real deployment swaps in
// a device backed by the USB transfer library.
package main

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/utils"

	"github.com/depthsense/kinectcam/kinect"
	"github.com/depthsense/kinectcam/kinect/fake"
	"github.com/depthsense/kinectcam/pointcloud"
	"github.com/depthsense/kinectcam/rimage/transform"
)

var logger = golog.NewDevelopmentLogger("kinectcam")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Device         int     `flag:"device,default=0,usage=index of the attached sensor to open"`
	Width          int     `flag:"width,default=640,usage=depth stream width in pixels"`
	Height         int     `flag:"height,default=480,usage=depth stream height in pixels"`
	MaxRange       float64 `flag:"max-range,default=4.0,usage=visualization far limit in meters"`
	Calibrate      bool    `flag:"calibrate,usage=alternate color and infrared streams on a timer"`
	IntrinsicsPath string  `flag:"intrinsics,usage=path to an intrinsics JSON file (default: nominal model)"`
	FrameRate      float64 `flag:"frame-rate,default=30,usage=poll rate in frames per second"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	conf := kinect.Config{
		DeviceIndex:     argsParsed.Device,
		Width:           argsParsed.Width,
		Height:          argsParsed.Height,
		MaxRangeMeters:  argsParsed.MaxRange,
		CalibrationMode: argsParsed.Calibrate,
		EnableRGBStream: true,
	}
	if argsParsed.IntrinsicsPath != "" {
		conf.IntrinsicsPath = argsParsed.IntrinsicsPath
	} else {
		conf.Intrinsics = nominalIntrinsics(argsParsed.Width, argsParsed.Height)
	}

	dev := fake.NewDevice(argsParsed.Width, argsParsed.Height)
	dev.Synthesize(true)

	driver, err := kinect.New(dev, newLogTransport(logger), conf, logger)
	if err != nil {
		return err
	}
	defer func() {
		utils.UncheckedErrorFunc(func() error { return driver.Close(ctx) })
	}()

	if err := driver.Start(ctx); err != nil {
		return err
	}
	logger.Infow("acquisition started", "session", driver.SessionID().String())

	interval := time.Second / time.Duration(argsParsed.FrameRate)
	for utils.SelectContextOrWait(ctx, interval) {
		if err := driver.Tick(ctx); err != nil {
			return err
		}
	}
	return nil
}

// nominalIntrinsics scales the sensor's nominal VGA pinhole model to the
// requested stream dimensions.
func nominalIntrinsics(width, height int) *transform.PinholeCameraIntrinsics {
	wr := float64(width) / 640.0
	hr := float64(height) / 480.0
	return &transform.PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     525.0 * wr,
		Fy:     525.0 * hr,
		Ppx:    319.5 * wr,
		Ppy:    239.5 * hr,
	}
}

// logTransport counts emissions per output kind and reports once a second.
// Every output kind looks subscribed so the whole pipeline runs.
type logTransport struct {
	logger golog.Logger

	mu         sync.Mutex
	counts     map[kinect.OutputKind]int
	lastPoints int
	lastPitch  float64
	lastReport time.Time
}

func newLogTransport(logger golog.Logger) *logTransport {
	return &logTransport{
		logger:     logger,
		counts:     map[kinect.OutputKind]int{},
		lastReport: time.Now(),
	}
}

func (lt *logTransport) Subscribers(kinect.OutputKind) int { return 1 }

func (lt *logTransport) record(kind kinect.OutputKind) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.counts[kind]++
	if time.Since(lt.lastReport) < time.Second {
		return
	}
	lt.logger.Infow("published",
		"depth_images", lt.counts[kinect.OutputDepthImage],
		"images", lt.counts[kinect.OutputImage],
		"point_lists", lt.counts[kinect.OutputPoints],
		"point_clouds", lt.counts[kinect.OutputPointCloud],
		"last_point_count", lt.lastPoints,
		"last_pitch_rad", lt.lastPitch,
	)
	lt.lastReport = time.Now()
}

func (lt *logTransport) PublishDepthImage(_ context.Context, _ *image.Gray, _ time.Time) error {
	lt.record(kinect.OutputDepthImage)
	return nil
}

func (lt *logTransport) PublishImage(_ context.Context, _ image.Image, _ kinect.StreamMode, _ time.Time) error {
	lt.record(kinect.OutputImage)
	return nil
}

func (lt *logTransport) PublishPoints(_ context.Context, pts []r3.Vector, _ time.Time) error {
	lt.mu.Lock()
	lt.lastPoints = len(pts)
	lt.mu.Unlock()
	lt.record(kinect.OutputPoints)
	return nil
}

func (lt *logTransport) PublishPointCloud(_ context.Context, _ pointcloud.PointCloud, _ time.Time) error {
	lt.record(kinect.OutputPointCloud)
	return nil
}

func (lt *logTransport) PublishCameraInfo(_ context.Context, _ kinect.CameraInfo, _ time.Time) error {
	lt.record(kinect.OutputCameraInfo)
	return nil
}

func (lt *logTransport) PublishIMU(_ context.Context, state kinect.InertialState, _ time.Time) error {
	lt.mu.Lock()
	lt.lastPitch = state.PitchRadians()
	lt.mu.Unlock()
	lt.record(kinect.OutputIMU)
	return nil
}
