package kinect

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/depthsense/kinectcam/rimage"
)

// ErrDeviceFailure wraps a failed status poll. It is the only error the
// acquisition loop surfaces; everything else is recovered in-cycle. There is
// no retry inside the driver: the caller owns the decision to reopen.
var ErrDeviceFailure = errors.New("device event pump failed")

// Driver owns one open depth camera and runs its acquisition cycle. Raw
// sample callbacks, which the device delivers re-entrantly during status
// polls, write into buffers guarded by a single mutex shared with the
// snapshot path. The mutex is scoped to copy operations only and is never
// held across a device poll or a transport emit.
type Driver struct {
	logger    golog.Logger
	dev       Device
	transport Transport
	clock     clock.Clock
	sessionID uuid.UUID

	mu  sync.Mutex
	cfg Config
	rec *Reconstructor

	mode    StreamMode
	videoOn bool
	depthOn bool
	closed  bool

	depthBuf   *rimage.DepthMap
	depthStamp time.Time
	depthFresh bool

	videoBuf    []byte
	videoFormat VideoFormat
	videoMode   StreamMode
	videoStamp  time.Time
	videoFresh  bool

	inertial InertialState

	// reconCycles counts cycles that ran geometry reconstruction.
	reconCycles int

	switchCancel context.CancelFunc
	workers      sync.WaitGroup
}

// New wires a driver to an open device and a publish transport. The config
// must validate; its intrinsics seed the projection ray table.
func New(dev Device, transport Transport, conf Config, logger golog.Logger) (*Driver, error) {
	if err := conf.Validate(""); err != nil {
		return nil, err
	}
	intrinsics, err := conf.loadIntrinsics()
	if err != nil {
		return nil, err
	}
	conf.Intrinsics = intrinsics
	rec, err := NewReconstructor(intrinsics, conf.roi())
	if err != nil {
		return nil, err
	}
	d := &Driver{
		logger:    logger,
		dev:       dev,
		transport: transport,
		clock:     clock.New(),
		sessionID: uuid.New(),
		cfg:       conf,
		rec:       rec,
		depthBuf:  rimage.NewEmptyDepthMap(conf.Width, conf.Height),
	}
	dev.SetDepthHandler(d.storeDepth)
	dev.SetVideoHandler(d.storeVideo)
	logger.Infow("driver ready",
		"session", d.sessionID.String(),
		"width", conf.Width,
		"height", conf.Height,
		"roi", rec.ROI(),
	)
	return d, nil
}

// SessionID identifies this capture session in logs and camera info.
func (d *Driver) SessionID() uuid.UUID {
	return d.sessionID
}

// Start opens the configured device and begins capture: depth always, video
// according to policy. In calibration mode the switcher owns the video path
// and alternates modes on a timer; otherwise the path is pinned to color and
// runs either statically (enable_rgb_stream) or on consumer demand.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDeviceClosed
	}
	if err := d.dev.Open(d.cfg.DeviceIndex); err != nil {
		d.mu.Unlock()
		return errors.Wrapf(err, "cannot open device %d", d.cfg.DeviceIndex)
	}
	if err := d.dev.StartDepth(); err != nil {
		d.mu.Unlock()
		return errors.Wrap(err, "cannot start depth stream")
	}
	d.depthOn = true
	calibration := d.cfg.CalibrationMode
	interval := d.cfg.switchInterval()
	if calibration || d.cfg.EnableRGBStream {
		if err := d.startVideoLocked(ColorActive); err != nil {
			d.mu.Unlock()
			return errors.Wrap(err, "cannot start video stream")
		}
	}
	d.mu.Unlock()

	if err := d.dev.SetLED(LEDGreen); err != nil {
		d.logger.Debugw("cannot set device LED", "error", err)
	}
	if calibration {
		d.startSwitcher(interval)
	}
	return nil
}

// Tick runs one acquisition cycle: poll the device (which pumps pending
// frame callbacks and refreshes the inertial state), then publish whatever
// arrived to whoever is listening. A nil return means keep going; a
// DeviceFailure is terminal for the session.
func (d *Driver) Tick(ctx context.Context) error {
	status, err := d.dev.UpdateStatus()
	if err != nil {
		return errors.Wrapf(ErrDeviceFailure, "%s", err)
	}

	d.mu.Lock()
	d.inertial = InertialState{Acceleration: status.Accel, TiltDegrees: status.TiltDegrees}
	d.mu.Unlock()

	d.manageVideoDemand()
	d.publish(ctx, d.snapshotForPublish())
	return nil
}

// Run repeats Tick until the device fails or the context ends. UpdateStatus
// is expected to block on the USB event pump the way libfreenect's
// process-events call does, so the loop needs no pacing of its own.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Tick(ctx); err != nil {
			return err
		}
	}
}

// Reconfigure applies a configuration update: the ray table is rebuilt when
// intrinsics change, the region of interest is re-clamped, and the video
// path policy is re-evaluated.
func (d *Driver) Reconfigure(conf Config) error {
	if err := conf.Validate(""); err != nil {
		return err
	}
	intrinsics, err := conf.loadIntrinsics()
	if err != nil {
		return err
	}
	conf.Intrinsics = intrinsics
	rec, err := NewReconstructor(intrinsics, conf.roi())
	if err != nil {
		return err
	}

	// Quiesce the switcher before touching mode state; it takes the same
	// mutex to finish an in-flight toggle.
	d.stopSwitcher()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDeviceClosed
	}
	if conf.DeviceIndex != d.cfg.DeviceIndex {
		d.mu.Unlock()
		return errors.Errorf("device_index cannot change at runtime (%d to %d); open a new session",
			d.cfg.DeviceIndex, conf.DeviceIndex)
	}
	resized := conf.Width != d.cfg.Width || conf.Height != d.cfg.Height
	d.cfg = conf
	d.rec = rec
	if resized {
		d.depthBuf = rimage.NewEmptyDepthMap(conf.Width, conf.Height)
		d.depthFresh = false
		d.videoBuf = nil
		d.videoFresh = false
	}
	var videoErr error
	started := d.depthOn
	switch {
	case !started:
		// Start applies the policy later.
	case conf.CalibrationMode:
		if !d.videoOn {
			videoErr = d.startVideoLocked(d.mode)
		}
	case conf.EnableRGBStream:
		if !d.videoOn || d.mode != ColorActive {
			videoErr = d.startVideoLocked(ColorActive)
		}
	default:
		// calibration over: pin the path back to color, demand decides
		// whether it runs at all
		if d.videoOn && d.mode != ColorActive {
			videoErr = d.startVideoLocked(ColorActive)
		} else {
			d.mode = ColorActive
		}
	}
	calibration := conf.CalibrationMode && started
	interval := conf.switchInterval()
	d.mu.Unlock()

	if calibration {
		d.startSwitcher(interval)
	}
	if videoErr != nil {
		return errors.Wrap(videoErr, "cannot apply video stream policy")
	}
	d.logger.Infow("reconfigured",
		"roi", rec.ROI(),
		"calibration_mode", conf.CalibrationMode,
		"enable_rgb_stream", conf.EnableRGBStream,
	)
	return nil
}

// SetTilt drives the sensor's tilt motor. The new angle shows up in the
// inertial state once the device reports it from a later status poll.
func (d *Driver) SetTilt(degrees float64) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDeviceClosed
	}
	d.mu.Unlock()
	return d.dev.SetTilt(degrees)
}

// Close stops capture and releases the device.
func (d *Driver) Close(ctx context.Context) error {
	d.stopSwitcher()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	var err error
	if d.depthOn {
		err = multierr.Append(err, d.dev.StopDepth())
		d.depthOn = false
	}
	if d.videoOn {
		err = multierr.Append(err, d.dev.StopVideo())
		d.videoOn = false
	}
	d.mu.Unlock()

	err = multierr.Append(err, d.dev.SetLED(LEDOff))
	err = multierr.Append(err, d.dev.Close())
	return err
}

// startVideoLocked switches the video path to the given mode, stopping any
// running stream first. Callers must hold d.mu.
func (d *Driver) startVideoLocked(mode StreamMode) error {
	if d.videoOn {
		if err := d.dev.StopVideo(); err != nil {
			return err
		}
		d.videoOn = false
	}
	if err := d.dev.StartVideo(mode.videoFormat()); err != nil {
		return err
	}
	d.videoOn = true
	d.mode = mode
	// a frame captured under the old mode must not publish with the new tag
	d.videoFresh = false
	return nil
}

// manageVideoDemand runs the demand-driven video policy: outside calibration
// mode and without the static enable flag, the color stream runs only while
// the image output has consumers.
func (d *Driver) manageVideoDemand() {
	want := d.transport.Subscribers(OutputImage) > 0

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || !d.depthOn || d.cfg.CalibrationMode || d.cfg.EnableRGBStream {
		return
	}
	switch {
	case want && !d.videoOn:
		if err := d.startVideoLocked(ColorActive); err != nil {
			d.logger.Warnw("cannot start video stream on demand", "error", err)
		}
	case !want && d.videoOn:
		if err := d.dev.StopVideo(); err != nil {
			d.logger.Warnw("cannot stop idle video stream", "error", err)
			return
		}
		d.videoOn = false
		d.videoFresh = false
	}
}

// storeDepth is the depth callback. It copies the raw frame under the buffer
// mutex and marks the channel fresh. Frames whose size disagrees with the
// configured dimensions are dropped, not truncated.
func (d *Driver) storeDepth(depth []rimage.Depth, timestamp uint32) {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if err := d.depthBuf.CopyFrom(depth); err != nil {
		d.logger.Debugw("dropping depth frame", "error", err, "device_ts", timestamp)
		return
	}
	d.depthStamp = now
	d.depthFresh = true
}

// storeVideo is the video callback for both color and infrared frames. The
// mode tag is captured under the same mutex the switcher serializes
// transitions with, so it can never be stale.
func (d *Driver) storeVideo(pix []byte, format VideoFormat, timestamp uint32) {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	want := d.cfg.Width * d.cfg.Height
	if format == VideoRGB {
		want *= 3
	}
	if len(pix) != want {
		d.logger.Debugw("dropping video frame", "size", len(pix), "want", want, "device_ts", timestamp)
		return
	}
	if cap(d.videoBuf) < len(pix) {
		d.videoBuf = make([]byte, len(pix))
	}
	d.videoBuf = d.videoBuf[:len(pix)]
	copy(d.videoBuf, pix)
	d.videoFormat = format
	d.videoMode = d.mode
	d.videoStamp = now
	d.videoFresh = true
}

// snapshot is one cycle's worth of publishable raw data. Channels that had
// no new frame since the last snapshot are nil.
type snapshot struct {
	depth      *rimage.DepthMap
	depthStamp time.Time

	video       []byte
	videoFormat VideoFormat
	videoMode   StreamMode
	videoStamp  time.Time

	inertial InertialState

	rec *Reconstructor
	cfg Config
	now time.Time
}

// snapshotForPublish drains the fresh flags under one lock acquisition,
// copying out only the channels that have new data. Each raw frame is
// observed fresh by at most one snapshot.
func (d *Driver) snapshotForPublish() snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := snapshot{
		inertial: d.inertial,
		rec:      d.rec,
		cfg:      d.cfg,
		now:      d.clock.Now(),
	}
	if d.depthFresh {
		snap.depth = d.depthBuf.Clone()
		snap.depthStamp = d.depthStamp
		d.depthFresh = false
	}
	if d.videoFresh {
		snap.video = append([]byte(nil), d.videoBuf...)
		snap.videoFormat = d.videoFormat
		snap.videoMode = d.videoMode
		snap.videoStamp = d.videoStamp
		d.videoFresh = false
	}
	return snap
}

// publish is the gate: each output is computed and emitted only when its raw
// channel produced new data this cycle and somebody is subscribed to it.
// Emit failures are logged and do not stop the cycle.
func (d *Driver) publish(ctx context.Context, snap snapshot) {
	if snap.depth != nil {
		if d.transport.Subscribers(OutputDepthImage) > 0 {
			img := DepthToGray8(snap.depth, snap.rec.ROI(), snap.cfg.MaxRangeMeters)
			if err := d.transport.PublishDepthImage(ctx, img, snap.depthStamp); err != nil {
				d.logger.Warnw("depth image emit failed", "error", err)
			}
		}
		if d.transport.Subscribers(OutputPoints) > 0 {
			d.reconCycles++
			pts := snap.rec.Points(snap.depth)
			if err := d.transport.PublishPoints(ctx, pts, snap.depthStamp); err != nil {
				d.logger.Warnw("point list emit failed", "error", err)
			}
		}
		if d.transport.Subscribers(OutputPointCloud) > 0 {
			d.reconCycles++
			var colorPix []byte
			if snap.video != nil && snap.videoFormat == VideoRGB {
				colorPix = snap.video
			}
			pc, err := snap.rec.PointCloud(snap.depth, colorPix)
			if err != nil {
				d.logger.Warnw("point cloud reconstruction failed", "error", err)
			} else if err := d.transport.PublishPointCloud(ctx, pc, snap.depthStamp); err != nil {
				d.logger.Warnw("point cloud emit failed", "error", err)
			}
		}
	}

	if snap.video != nil && d.transport.Subscribers(OutputImage) > 0 {
		img, err := videoToImage(snap.video, snap.videoFormat, snap.cfg.Width, snap.cfg.Height)
		if err != nil {
			d.logger.Warnw("video frame conversion failed", "error", err)
		} else if err := d.transport.PublishImage(ctx, img, snap.videoMode, snap.videoStamp); err != nil {
			d.logger.Warnw("image emit failed", "error", err)
		}
	}

	if (snap.depth != nil || snap.video != nil) && d.transport.Subscribers(OutputCameraInfo) > 0 {
		info := CameraInfo{
			SessionID:    d.sessionID,
			Intrinsics:   *snap.cfg.Intrinsics,
			CameraMatrix: snap.cfg.Intrinsics.GetCameraMatrix(),
		}
		if err := d.transport.PublishCameraInfo(ctx, info, snap.now); err != nil {
			d.logger.Warnw("camera info emit failed", "error", err)
		}
	}

	if d.transport.Subscribers(OutputIMU) > 0 {
		if err := d.transport.PublishIMU(ctx, snap.inertial, snap.now); err != nil {
			d.logger.Warnw("imu emit failed", "error", err)
		}
	}
}

func videoToImage(pix []byte, format VideoFormat, width, height int) (image.Image, error) {
	if format == VideoIR8Bit {
		return rimage.GrayFromIR(pix, width, height)
	}
	return rimage.NRGBAFromRGB(pix, width, height)
}
