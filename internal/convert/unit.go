package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/waymo2bag/internal/lidar"
	"github.com/banshee-data/waymo2bag/internal/monitoring"
	"github.com/banshee-data/waymo2bag/internal/rosbag"
	"github.com/banshee-data/waymo2bag/internal/rosmsg"
	"github.com/banshee-data/waymo2bag/internal/waymo"
)

// FrameStats records what one frame contributed to the bag.
type FrameStats struct {
	Index           int
	TimestampMicros int64
	// Points holds the point count per laser, in Options.Lasers order.
	Points []SensorPoints
}

// SensorPoints is the point count written for one laser.
type SensorPoints struct {
	Laser  lidar.LaserName
	Points int
}

// UnitResult describes the conversion of one input unit.
type UnitResult struct {
	Name     string
	Source   string
	Output   string
	Frames   int
	Messages map[string]int
	Stats    []FrameStats
	Duration time.Duration
	Err      error
}

// OK reports whether the unit converted successfully.
func (r *UnitResult) OK() bool {
	return r.Err == nil
}

// UnitName is the part of the file name before the first dot, so that
// "segment-1.tfrecord" and "segment-1.with.dots.tfrecord" both map to
// "segment-1".
func UnitName(path string) string {
	base := filepath.Base(path)
	if base == "" {
		return base
	}
	// A leading dot belongs to the name (".hidden.tfrecord" -> ".hidden").
	if i := strings.IndexByte(base[1:], '.'); i >= 0 {
		return base[:i+1]
	}
	return base
}

// unitContext is the state of one unit conversion. It is created fresh for
// every unit so nothing leaks between bags.
type unitContext struct {
	name   string
	opts   Options
	engine *lidar.Engine
	bag    *rosbag.Writer

	// staticTF is the first frame's static transform set; later frames are
	// compared against it.
	staticTF *rosmsg.TFMessage
	lastTS   int64
	frames   int
	stats    []FrameStats
}

func newUnitContext(name string, opts Options, bag *rosbag.Writer) *unitContext {
	return &unitContext{
		name:   name,
		opts:   opts,
		engine: lidar.NewEngine(lidar.GeometryOptions{FilterNoLabelZone: opts.FilterNoLabelZone}),
		bag:    bag,
	}
}

// ConvertUnit converts the tfrecord at src into a bag at dst. On any error
// the partial bag is removed and the returned error is a *UnitError.
func (c *Converter) ConvertUnit(ctx context.Context, src, dst string) (*UnitResult, error) {
	clock := c.clock()
	start := clock.Now()
	name := UnitName(src)
	res := &UnitResult{Name: name, Source: src, Output: dst}

	fail := func(frame int, err error) (*UnitResult, error) {
		res.Err = &UnitError{Unit: name, Frame: frame, Err: err}
		res.Duration = clock.Since(start)
		return res, res.Err
	}

	f, err := os.Open(src)
	if err != nil {
		return fail(-1, err)
	}
	defer f.Close()

	var in io.Reader = f
	if c.Progress {
		bar := newProgressBar(name, f)
		defer bar.Finish()
		in = bar.NewProxyReader(f)
	}

	bag, err := rosbag.Create(dst, rosbag.Options{
		ChunkThreshold: c.Options.ChunkThreshold,
		Latched:        []string{TopicTFStatic},
	})
	if err != nil {
		return fail(-1, err)
	}

	u := newUnitContext(name, c.Options, bag)
	if err := u.run(ctx, waymo.NewReader(in)); err != nil {
		res.Frames = u.frames
		res.Stats = u.stats
		if abortErr := bag.Abort(); abortErr != nil {
			monitoring.Opsf("unit %s: %v", name, abortErr)
		}
		var ue *UnitError
		if errors.As(err, &ue) {
			res.Err = ue
			res.Duration = clock.Since(start)
			return res, ue
		}
		return fail(-1, err)
	}

	res.Messages = bag.MessageCounts()
	if err := bag.Close(); err != nil {
		return fail(-1, err)
	}
	res.Frames = u.frames
	res.Stats = u.stats
	res.Duration = clock.Since(start)
	monitoring.Diagf("unit %s: %d frames in %s -> %s", name, u.frames, res.Duration.Round(time.Millisecond), dst)
	return res, nil
}

func (u *unitContext) run(ctx context.Context, r *waymo.Reader) error {
	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return &UnitError{Unit: u.name, Frame: idx, Err: err}
		}
		record, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &UnitError{Unit: u.name, Frame: idx, Err: err}
		}
		frame, err := waymo.DecodeFrame(record)
		if err != nil {
			return &UnitError{Unit: u.name, Frame: idx, Err: err}
		}
		if err := u.convertFrame(idx, frame); err != nil {
			return &UnitError{Unit: u.name, Frame: idx, Err: err}
		}
		u.frames++
	}
}

// convertFrame writes every message of one frame, all stamped with the
// frame timestamp.
func (u *unitContext) convertFrame(idx int, f *waymo.Frame) error {
	if idx > 0 && f.TimestampMicros < u.lastTS {
		return fmt.Errorf("%w: timestamp %d precedes previous frame %d",
			lidar.ErrMalformedFrame, f.TimestampMicros, u.lastTS)
	}
	u.lastTS = f.TimestampMicros
	stamp := rosmsg.TimeFromMicros(f.TimestampMicros)

	pose, err := f.PoseTransform()
	if err != nil {
		return err
	}

	if err := u.bag.WriteMessage(TopicOdom, stamp, odometryMessage(pose, stamp)); err != nil {
		return err
	}
	if err := u.writeStaticTF(idx, f, stamp); err != nil {
		return err
	}
	if u.opts.PublishTF {
		if err := u.bag.WriteMessage(TopicTF, stamp, dynamicTFMessage(pose, stamp)); err != nil {
			return err
		}
	}
	if err := u.writePointClouds(idx, f, pose, stamp); err != nil {
		return err
	}
	if err := u.writeCameras(f, stamp); err != nil {
		return err
	}
	return nil
}

// writeStaticTF writes the static transforms on the first frame and checks
// every later frame against them.
func (u *unitContext) writeStaticTF(idx int, f *waymo.Frame, stamp rosmsg.Time) error {
	msg, err := staticTFMessage(f, u.opts)
	if err != nil {
		return err
	}
	if u.staticTF == nil {
		u.staticTF = msg
		return u.bag.WriteMessage(TopicTFStatic, stamp, msg)
	}
	if !u.staticTF.Equal(msg) {
		return &StaticTransformMismatchError{Frame: idx, First: u.staticTF, Got: msg}
	}
	return nil
}

func (u *unitContext) writePointClouds(idx int, f *waymo.Frame, pose lidar.Transform, stamp rosmsg.Time) error {
	fs := FrameStats{Index: idx, TimestampMicros: f.TimestampMicros}
	defer func() { u.stats = append(u.stats, fs) }()

	if len(u.opts.Lasers) == 0 {
		return nil
	}
	clouds, err := buildClouds(u.engine, f, pose, u.opts)
	if err != nil {
		return err
	}

	for _, cloud := range clouds {
		if err := u.bag.WriteMessage(PointCloudTopic(cloud.Laser), stamp, pointCloudMessage(cloud, stamp)); err != nil {
			return err
		}
		fs.Points = append(fs.Points, SensorPoints{Laser: cloud.Laser, Points: cloud.Len()})
		monitoring.Tracef("unit %s frame %d: lidar %s %d points", u.name, idx, cloud.Laser, cloud.Len())
	}
	if u.opts.ConcatenatedCloud {
		all := lidar.ConcatenateClouds(clouds)
		if err := u.bag.WriteMessage(TopicConcatenatedCloud, stamp, pointCloudMessage(all, stamp)); err != nil {
			return err
		}
	}
	return nil
}

func (u *unitContext) writeCameras(f *waymo.Frame, stamp rosmsg.Time) error {
	for _, name := range u.opts.Cameras {
		img, ok := f.Image(name)
		if !ok {
			return fmt.Errorf("%w: no image for camera %s", lidar.ErrMalformedFrame, name)
		}
		msg, err := imageMessage(img, stamp)
		if err != nil {
			return err
		}
		if err := u.bag.WriteMessage(ImageTopic(name), stamp, msg); err != nil {
			return err
		}
	}
	for _, name := range u.opts.Cameras {
		cal, ok := f.CameraCalibration(name)
		if !ok {
			return fmt.Errorf("%w: no calibration for camera %s", lidar.ErrMalformedFrame, name)
		}
		msg, err := cameraInfoMessage(cal, stamp)
		if err != nil {
			return err
		}
		if err := u.bag.WriteMessage(CameraInfoTopic(name), stamp, msg); err != nil {
			return err
		}
	}
	return nil
}

func buildClouds(engine *lidar.Engine, f *waymo.Frame, pose lidar.Transform, opts Options) ([]*lidar.Cloud, error) {
	scans, err := f.LidarScans(opts.Lasers)
	if err != nil {
		return nil, err
	}
	returns, err := engine.ConvertScans(pose, scans)
	if err != nil {
		return nil, err
	}
	return lidar.AssembleClouds(returns, opts.Lasers, opts.NormalizeIntensity)
}

// FrameClouds returns the point cloud of every selected laser for a single
// frame, exactly as ConvertUnit would write them.
func FrameClouds(f *waymo.Frame, opts Options) ([]*lidar.Cloud, error) {
	pose, err := f.PoseTransform()
	if err != nil {
		return nil, err
	}
	engine := lidar.NewEngine(lidar.GeometryOptions{FilterNoLabelZone: opts.FilterNoLabelZone})
	return buildClouds(engine, f, pose, opts)
}
