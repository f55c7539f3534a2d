package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/waymo2bag/internal/db"
	"github.com/banshee-data/waymo2bag/internal/lidar"
	"github.com/banshee-data/waymo2bag/internal/rosbag"
	"github.com/banshee-data/waymo2bag/internal/rosmsg"
	"github.com/banshee-data/waymo2bag/internal/timeutil"
	"github.com/banshee-data/waymo2bag/internal/waymo"
)

// writeUnit writes n synthetic frames to dir/name.
func writeUnit(t *testing.T, dir, name string, n int, opts ...waymo.SyntheticOption) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	gen := waymo.NewSyntheticGenerator(name, append([]waymo.SyntheticOption{waymo.WithSeed(7)}, opts...)...)
	require.NoError(t, gen.WriteSegment(f, n))
	return path
}

// writeFrames writes already generated frames in the given order.
func writeFrames(t *testing.T, path string, frames ...*waymo.Frame) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := waymo.NewWriter(f)
	for _, fr := range frames {
		require.NoError(t, w.Write(waymo.AppendFrame(nil, fr)))
	}
}

func assertNoBag(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%s must not exist", path)
	_, err = os.Stat(path + rosbag.TempSuffix)
	assert.True(t, os.IsNotExist(err), "%s must not exist", path+rosbag.TempSuffix)
}

func TestUnitName(t *testing.T) {
	cases := map[string]string{
		"/data/segment-1.tfrecord":     "segment-1",
		"segment-1.with.dots.tfrecord": "segment-1",
		"plain":                        "plain",
		"/x/.hidden.tfrecord":          ".hidden",
		".hidden":                      ".hidden",
		"/x/seg..tfrecord":             "seg",
	}
	for in, want := range cases {
		assert.Equal(t, want, UnitName(in), in)
	}
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	o := DefaultOptions()
	o.Lasers = []lidar.LaserName{lidar.LaserTop, lidar.LaserTop}
	assert.ErrorContains(t, o.Validate(), "selected twice")

	o = DefaultOptions()
	o.Cameras = []waymo.CameraName{waymo.CameraUnknown}
	assert.ErrorContains(t, o.Validate(), "invalid camera")

	o = DefaultOptions()
	o.Lasers = nil
	o.ConcatenatedCloud = true
	assert.ErrorContains(t, o.Validate(), "concatenated")

	o = DefaultOptions()
	o.ChunkThreshold = -1
	assert.ErrorContains(t, o.Validate(), "chunk threshold")
}

func TestRun_EndToEnd(t *testing.T) {
	load, save := t.TempDir(), filepath.Join(t.TempDir(), "out")
	writeUnit(t, load, "segment-b.tfrecord", 3)
	writeUnit(t, load, "segment-a.with_camera_labels.tfrecord", 4)
	require.NoError(t, os.WriteFile(filepath.Join(load, "notes.txt"), []byte("ignored"), 0o644))

	c := &Converter{Options: DefaultOptions()}
	summary, err := c.Run(context.Background(), load, save)
	require.NoError(t, err)
	require.NoError(t, summary.Err())
	require.Len(t, summary.Units, 2)
	assert.Equal(t, 0, summary.Failed())
	assert.Equal(t, "segment-a", summary.Units[0].Name)
	assert.Equal(t, "segment-b", summary.Units[1].Name)

	res := summary.Units[0]
	assert.Equal(t, filepath.Join(save, "segment-a.bag"), res.Output)
	assert.Equal(t, 4, res.Frames)
	require.Len(t, res.Stats, 4)
	for i, fs := range res.Stats {
		assert.Equal(t, i, fs.Index)
		require.Len(t, fs.Points, 1)
		assert.Equal(t, lidar.LaserTop, fs.Points[0].Laser)
		assert.Positive(t, fs.Points[0].Points)
	}

	bag, err := rosbag.ReadBag(res.Output)
	require.NoError(t, err)
	counts := map[string]int{}
	types := map[string]string{}
	for _, s := range bag.Summarize() {
		counts[s.Topic] = s.Messages
		types[s.Topic] = s.Type
	}
	assert.Equal(t, map[string]int{
		"/odom":                     4,
		"/tf_static":                1,
		"/lidar/top/pointcloud":     4,
		"/camera/front/image":       4,
		"/camera/front/camera_info": 4,
	}, counts)
	assert.Equal(t, res.Messages, counts)
	assert.Equal(t, "sensor_msgs/PointCloud2", types["/lidar/top/pointcloud"])
	assert.Equal(t, "sensor_msgs/Image", types["/camera/front/image"])

	tf, ok := bag.Topic("/tf_static")
	require.True(t, ok)
	assert.True(t, tf.Latching)

	odom, err := bag.MessagesForTopic("/odom")
	require.NoError(t, err)
	require.Len(t, odom, 4)
	for i, m := range odom {
		meta := m["meta"].(map[string]interface{})
		assert.EqualValues(t, 1550000000, meta["secs"])
		assert.EqualValues(t, i*100000000, meta["nsecs"])
	}
}

func TestRun_OptionalTopics(t *testing.T) {
	load, save := t.TempDir(), t.TempDir()
	writeUnit(t, load, "seg.tfrecord", 2)

	opts := DefaultOptions()
	opts.Lasers = []lidar.LaserName{lidar.LaserTop, lidar.LaserFront}
	opts.Cameras = []waymo.CameraName{waymo.CameraFront, waymo.CameraSideRight}
	opts.ConcatenatedCloud = true
	opts.PublishTF = true

	summary, err := (&Converter{Options: opts}).Run(context.Background(), load, save)
	require.NoError(t, err)
	require.NoError(t, summary.Err())

	res := summary.Units[0]
	assert.Equal(t, 2, res.Messages["/tf"])
	assert.Equal(t, 2, res.Messages[TopicConcatenatedCloud])
	assert.Equal(t, 2, res.Messages["/lidar/front/pointcloud"])
	assert.Equal(t, 2, res.Messages["/camera/side_right/camera_info"])
	assert.Equal(t, 1, res.Messages["/tf_static"])

	for _, fs := range res.Stats {
		require.Len(t, fs.Points, 2)
	}

	bag, err := rosbag.ReadBag(res.Output)
	require.NoError(t, err)
	tfs, err := bag.MessagesForTopic("/tf_static")
	require.NoError(t, err)
	require.Len(t, tfs, 1)
	transforms := tfs[0]["data"].(map[string]interface{})["transforms"].([]interface{})
	var children []string
	for _, tr := range transforms {
		children = append(children, tr.(map[string]interface{})["child_frame_id"].(string))
	}
	assert.Equal(t, []string{"front", "side_right", "lidar_top", "lidar_front"}, children)
}

func TestConvertUnit_StaticTransformMismatch(t *testing.T) {
	dir := t.TempDir()
	src := writeUnit(t, dir, "drift.tfrecord", 3, waymo.WithExtrinsicDrift(2, 0.05))
	dst := filepath.Join(dir, "drift.bag")

	res, err := (&Converter{Options: DefaultOptions()}).ConvertUnit(context.Background(), src, dst)
	require.Error(t, err)
	assert.False(t, res.OK())

	var mismatch *StaticTransformMismatchError
	require.True(t, errors.As(err, &mismatch), "got %v", err)
	assert.Equal(t, 2, mismatch.Frame)
	assert.True(t, errors.Is(err, ErrStaticTransformMismatch))
	assert.Contains(t, err.Error(), "static transform for front changed at frame 2")

	var ue *UnitError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "drift", ue.Unit)
	assert.Equal(t, 2, ue.Frame)
	assert.Equal(t, 2, res.Frames)

	assertNoBag(t, dst)
}

func TestConvertUnit_TimestampRegression(t *testing.T) {
	dir := t.TempDir()
	gen := waymo.NewSyntheticGenerator("back", waymo.WithSeed(1))
	f0, err := gen.NextFrame()
	require.NoError(t, err)
	f1, err := gen.NextFrame()
	require.NoError(t, err)

	src := filepath.Join(dir, "back.tfrecord")
	writeFrames(t, src, f1, f0)
	dst := filepath.Join(dir, "back.bag")

	_, err = (&Converter{Options: DefaultOptions()}).ConvertUnit(context.Background(), src, dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, lidar.ErrMalformedFrame), "got %v", err)
	var ue *UnitError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 1, ue.Frame)
	assertNoBag(t, dst)
}

func TestConvertUnit_EqualTimestampsAllowed(t *testing.T) {
	dir := t.TempDir()
	gen := waymo.NewSyntheticGenerator("same", waymo.WithSeed(1))
	f0, err := gen.NextFrame()
	require.NoError(t, err)

	src := filepath.Join(dir, "same.tfrecord")
	writeFrames(t, src, f0, f0)
	res, err := (&Converter{Options: DefaultOptions()}).ConvertUnit(context.Background(), src, filepath.Join(dir, "same.bag"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Frames)
}

func TestConvertUnit_MissingCamera(t *testing.T) {
	dir := t.TempDir()
	src := writeUnit(t, dir, "nocam.tfrecord", 1,
		waymo.WithSensors([]lidar.LaserName{lidar.LaserTop}, nil))
	dst := filepath.Join(dir, "nocam.bag")

	_, err := (&Converter{Options: DefaultOptions()}).ConvertUnit(context.Background(), src, dst)
	assert.True(t, errors.Is(err, lidar.ErrMalformedFrame), "got %v", err)
	assertNoBag(t, dst)
}

func TestConvertUnit_CamerasOnly(t *testing.T) {
	dir := t.TempDir()
	src := writeUnit(t, dir, "cams.tfrecord", 2,
		waymo.WithSensors(nil, []waymo.CameraName{waymo.CameraFront}))
	opts := DefaultOptions()
	opts.Lasers = nil

	res, err := (&Converter{Options: opts}).ConvertUnit(context.Background(), src, filepath.Join(dir, "cams.bag"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Messages["/camera/front/image"])
	assert.NotContains(t, res.Messages, "/lidar/top/pointcloud")
}

func TestRun_ContinuesAfterFailure(t *testing.T) {
	load, save := t.TempDir(), t.TempDir()
	writeUnit(t, load, "good.tfrecord", 2)
	require.NoError(t, os.WriteFile(filepath.Join(load, "bad.tfrecord"), []byte("truncated"), 0o644))

	summary, err := (&Converter{Options: DefaultOptions()}).Run(context.Background(), load, save)
	require.NoError(t, err)
	require.Len(t, summary.Units, 2)
	assert.Equal(t, 1, summary.Failed())
	assert.Error(t, summary.Err())

	assert.Equal(t, "bad", summary.Units[0].Name)
	assert.False(t, summary.Units[0].OK())
	assertNoBag(t, filepath.Join(save, "bad.bag"))

	assert.True(t, summary.Units[1].OK())
	_, err = os.Stat(filepath.Join(save, "good.bag"))
	assert.NoError(t, err)
}

func TestRun_DuplicateUnitNames(t *testing.T) {
	load, save := t.TempDir(), t.TempDir()
	writeUnit(t, load, "seg.a.tfrecord", 1)
	writeUnit(t, load, "seg.tfrecord", 1)

	summary, err := (&Converter{Options: DefaultOptions()}).Run(context.Background(), load, save)
	require.NoError(t, err)
	require.Len(t, summary.Units, 2)
	assert.True(t, summary.Units[0].OK())
	assert.False(t, summary.Units[1].OK())
	assert.Contains(t, summary.Units[1].Err.Error(), "already written")
}

func TestRun_DotfileUnitName(t *testing.T) {
	load, save := t.TempDir(), t.TempDir()
	writeUnit(t, load, ".hidden.tfrecord", 1)

	summary, err := (&Converter{Options: DefaultOptions()}).Run(context.Background(), load, save)
	require.NoError(t, err)
	require.Len(t, summary.Units, 1)
	require.True(t, summary.Units[0].OK(), "%v", summary.Units[0].Err)
	assert.Equal(t, ".hidden", summary.Units[0].Name)

	_, err = os.Stat(filepath.Join(save, ".hidden.bag"))
	assert.NoError(t, err)
	assertNoBag(t, filepath.Join(save, ".hidden.tfrecord.bag"))
}

func TestRun_Cancelled(t *testing.T) {
	load, save := t.TempDir(), t.TempDir()
	writeUnit(t, load, "a.tfrecord", 2)
	writeUnit(t, load, "b.tfrecord", 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := (&Converter{Options: DefaultOptions()}).Run(ctx, load, save)
	require.NoError(t, err)
	require.Len(t, summary.Units, 1)
	assert.True(t, errors.Is(summary.Units[0].Err, context.Canceled))
	assertNoBag(t, filepath.Join(save, "a.bag"))
}

func TestRun_InvalidOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.ChunkThreshold = -5
	_, err := (&Converter{Options: opts}).Run(context.Background(), t.TempDir(), t.TempDir())
	assert.ErrorContains(t, err, "invalid options")
}

func TestRun_RecordsCatalog(t *testing.T) {
	load, save := t.TempDir(), t.TempDir()
	writeUnit(t, load, "ok.tfrecord", 3)
	writeUnit(t, load, "drift.tfrecord", 3, waymo.WithExtrinsicDrift(1, 0.2))

	store, err := db.NewDB(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	c := &Converter{Options: DefaultOptions(), Catalog: store}
	summary, err := c.Run(context.Background(), load, save)
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, 2, runs[0].Units)
	assert.Equal(t, 1, runs[0].Failed)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.Contains(t, runs[0].Settings, `"lidar_sensors":["top"]`)

	units, err := store.UnitResults(summary.RunID)
	require.NoError(t, err)
	require.Len(t, units, 2)

	drift := units[0]
	assert.Equal(t, "drift", drift.Unit)
	assert.Equal(t, db.StatusFailed, drift.Status)
	require.NotNil(t, drift.FailedFrame)
	assert.Equal(t, 1, *drift.FailedFrame)
	assert.Contains(t, drift.Error, "static transform")

	ok := units[1]
	assert.Equal(t, db.StatusOK, ok.Status)
	assert.Equal(t, 3, ok.Frames)
	assert.Equal(t, 3*4+1, ok.Messages)
	assert.Nil(t, ok.FailedFrame)

	stats, err := store.FrameStats(summary.RunID, "ok")
	require.NoError(t, err)
	require.Len(t, stats, 3)
	for i, s := range stats {
		assert.Equal(t, i, s.FrameIndex)
		assert.Equal(t, "top", s.Sensor)
		assert.Equal(t, summary.Units[1].Stats[i].Points[0].Points, s.Points)
		assert.Equal(t, rosmsg.TimeFromMicros(s.TimestampMicros).Sec, uint32(1550000000))
	}

	driftStats, err := store.FrameStats(summary.RunID, "drift")
	require.NoError(t, err)
	assert.Len(t, driftStats, 1)
}

func TestConvertUnit_DurationUsesClock(t *testing.T) {
	dir := t.TempDir()
	src := writeUnit(t, dir, "timed.tfrecord", 1)
	clock := timeutil.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	clock.SetStep(250 * time.Millisecond)

	c := &Converter{Options: DefaultOptions(), Clock: clock}
	res, err := c.ConvertUnit(context.Background(), src, filepath.Join(dir, "timed.bag"))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, res.Duration)
	assert.Equal(t, int64(250), unitRecord(res).DurationMS)
}
